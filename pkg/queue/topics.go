// Package queue 定义消息主题常量与通配模式，供发布/订阅使用.
package queue

// 主题命名规范：sv.<域>.<动作>，尽量稳定且向后兼容.

const (
	// 资源领域.
	TopicResourceCreated = "sv.resource.created" // 资源已创建（元数据已落库）
	TopicResourceUpdated = "sv.resource.updated" // 资源元数据或文件被更新
	TopicResourceDeleted = "sv.resource.deleted" // 资源被删除

	// Blob 领域.
	TopicBlobOrphaned = "sv.blob.orphaned" // 清理任务删除了无引用的 blob
)

// ResourceTopics 资源相关主题集合.
var ResourceTopics = []string{
	TopicResourceCreated, TopicResourceUpdated, TopicResourceDeleted,
}

// AllTopics 服务会发布的全部主题.
var AllTopics = append(append([]string{}, ResourceTopics...), TopicBlobOrphaned)
