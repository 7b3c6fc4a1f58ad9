package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Resource 上传的文件及其描述信息.
// FileLocator、StorageID、OwnerID 创建后不再修改.
type Resource struct {
	ID          string        `gorm:"primaryKey;size:26"`
	Title       string        `gorm:"size:512;not null"`
	Description string        `gorm:"type:text"`
	// TitleFold、DescriptionFold 为 Go 侧小写副本，检索只匹配这两列
	TitleFold       string        `gorm:"size:512"`
	DescriptionFold string        `gorm:"type:text"`
	Tags        []ResourceTag `gorm:"foreignKey:ResourceID;constraint:OnDelete:CASCADE"`
	// FileLocator 客户端可访问的地址，本地存储为 /uploads/<name>
	FileLocator string `gorm:"size:1024;not null"`
	// StorageID 对象存储中的 key，本地存储为空
	StorageID        string `gorm:"size:1024"`
	OriginalFileName string `gorm:"size:512"`
	FileSize         int64
	MimeType         string  `gorm:"size:255"`
	OwnerID          string  `gorm:"size:26;index;not null"`
	Owner            Account `gorm:"foreignKey:OwnerID"`
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time
}

// ResourceTag 资源标签，Position 保持输入顺序，允许重复.
type ResourceTag struct {
	ResourceID string `gorm:"primaryKey;size:26"`
	Position   int    `gorm:"primaryKey;autoIncrement:false"`
	Tag        string `gorm:"size:255;index;not null"`
}

// BeforeCreate 补齐 ID 与标签的外键.
func (r *Resource) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = NewID()
	}

	for i := range r.Tags {
		r.Tags[i].ResourceID = r.ID
	}

	return nil
}

// BeforeSave 同步检索用的小写副本.
func (r *Resource) BeforeSave(_ *gorm.DB) error {
	r.TitleFold = Fold(r.Title)
	r.DescriptionFold = Fold(r.Description)

	return nil
}

// Fold 检索用的大小写折叠，数据库的 LOWER 在 sqlite 上只处理 ASCII.
func Fold(s string) string {
	return strings.ToLower(s)
}

// TagNames 按顺序返回标签文本.
func (r *Resource) TagNames() []string {
	tags := make([]string, 0, len(r.Tags))
	for _, t := range r.Tags {
		tags = append(tags, t.Tag)
	}

	return tags
}

// SetTags 用新的标签列表替换.
func (r *Resource) SetTags(tags []string) {
	r.Tags = NewTags(r.ID, tags)
}

// NewTags 构造带顺序的标签行.
func NewTags(resourceID string, tags []string) []ResourceTag {
	rows := make([]ResourceTag, 0, len(tags))
	for i, t := range tags {
		rows = append(rows, ResourceTag{ResourceID: resourceID, Position: i, Tag: t})
	}

	return rows
}

// All 需要迁移的全部模型.
func All() []any {
	return []any{&Account{}, &Resource{}, &ResourceTag{}}
}
