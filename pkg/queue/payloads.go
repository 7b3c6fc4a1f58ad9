package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪 ID，来自请求 span.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// FileRef 资源附带的文件.
type FileRef struct {
	Locator   string `json:"locator"`
	StorageID string `json:"storage_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Size      int64  `json:"size,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
}

// ResourceCreatedPayload 资源已创建.
type ResourceCreatedPayload struct {
	ResourceID string   `json:"resource_id"`
	OwnerID    string   `json:"owner_id"`
	Title      string   `json:"title"`
	Tags       []string `json:"tags,omitempty"`
	File       *FileRef `json:"file,omitempty"`
}

// ResourceUpdatedPayload 资源被更新，Fields 为本次修改的字段名.
type ResourceUpdatedPayload struct {
	ResourceID string   `json:"resource_id"`
	OwnerID    string   `json:"owner_id"`
	Fields     []string `json:"fields"`
	// PrevFile 文件被替换时为旧文件.
	PrevFile *FileRef `json:"prev_file,omitempty"`
	File     *FileRef `json:"file,omitempty"`
}

// ResourceDeletedPayload 资源被删除.
type ResourceDeletedPayload struct {
	ResourceID string   `json:"resource_id"`
	OwnerID    string   `json:"owner_id"`
	File       *FileRef `json:"file,omitempty"`
	// BlobDeleted 为 false 表示文件删除失败，留给孤儿清理任务.
	BlobDeleted bool `json:"blob_deleted"`
}

// BlobOrphanedPayload 无引用 blob 已被清理.
type BlobOrphanedPayload struct {
	Backend string    `json:"backend"`
	Key     string    `json:"key"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}
