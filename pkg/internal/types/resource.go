package types

import (
	"time"

	"github.com/yeisme/sharevault/pkg/internal/model"
)

// UploadResourceRequest multipart 表单中的文本字段，文件字段名为 file.
type UploadResourceRequest struct {
	Title       string `form:"title"       rule:"max=512"`
	Description string `form:"description"`
	Tags        string `form:"tags"` // 逗号分隔
}

// UpdateResourceRequest 未提供的字段保持原值；提供 tags（即使为空串）会整体替换标签.
type UpdateResourceRequest struct {
	Title       *string `json:"title"       rule:"omitempty,max=512"`
	Description *string `json:"description"`
	Tags        *string `json:"tags"`
}

// SearchQuery 列表查询参数，search 为逗号分隔的关键字.
type SearchQuery struct {
	Search string `form:"search"`
}

// OwnerView 资源所有者的展示字段.
type OwnerView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// ResourceView 资源的对外表示.
type ResourceView struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Tags             []string   `json:"tags"`
	FileLocator      string     `json:"fileLocator"`
	StorageID        string     `json:"storageId,omitempty"`
	OriginalFileName string     `json:"originalFileName,omitempty"`
	FileSize         int64      `json:"fileSize"`
	MimeType         string     `json:"mimeType,omitempty"`
	OwnerID          string     `json:"ownerId"`
	Owner            *OwnerView `json:"owner,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// ResourceResponse 创建/更新成功的响应.
type ResourceResponse struct {
	Success  bool         `json:"success"`
	Resource ResourceView `json:"resource"`
}

// NewOwnerView 从账户构造展示字段，账户未加载时返回 nil.
func NewOwnerView(a *model.Account) *OwnerView {
	if a == nil || a.ID == "" {
		return nil
	}

	return &OwnerView{ID: a.ID, Username: a.Username, Email: a.Email}
}

// NewResourceView 从模型构造对外表示.
func NewResourceView(r *model.Resource) ResourceView {
	return ResourceView{
		ID:               r.ID,
		Title:            r.Title,
		Description:      r.Description,
		Tags:             r.TagNames(),
		FileLocator:      r.FileLocator,
		StorageID:        r.StorageID,
		OriginalFileName: r.OriginalFileName,
		FileSize:         r.FileSize,
		MimeType:         r.MimeType,
		OwnerID:          r.OwnerID,
		Owner:            NewOwnerView(&r.Owner),
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

// NewResourceViews 批量转换，结果永不为 nil.
func NewResourceViews(rs []model.Resource) []ResourceView {
	views := make([]ResourceView, 0, len(rs))
	for i := range rs {
		views = append(views, NewResourceView(&rs[i]))
	}

	return views
}
