package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/storage/blob"
	"github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/metrics"
	"github.com/yeisme/sharevault/pkg/queue"
	"github.com/yeisme/sharevault/pkg/tracing"
)

// ResourceService 资源库：创建、检索、仅所有者可改删.
type ResourceService struct {
	db     *gorm.DB
	blob   blob.Store
	cache  *cache.Cache
	events *queue.Emitter
}

// CreateInput 创建资源的输入，File 为上传的文件.
type CreateInput struct {
	OwnerID     string
	Title       string
	Description string
	Tags        string
	File        *blob.PutInput
}

// UpdateInput nil 字段保持原值.
type UpdateInput struct {
	Title       *string
	Description *string
	Tags        *string
}

// NewResourceService 使用 context 中的存储创建服务.
func NewResourceService(c context.Context) *ResourceService {
	return NewResourceServiceWith(DepsFromContext(c))
}

// NewResourceServiceWith 使用显式依赖创建服务.
func NewResourceServiceWith(d Deps) *ResourceService {
	return &ResourceService{
		db:     gormDB(d.DB),
		blob:   d.Blob,
		cache:  d.Cache,
		events: d.Events,
	}
}

// Create 先写 blob 再写记录，记录写入失败时尽力删除刚写入的 blob.
func (s *ResourceService) Create(ctx context.Context, in CreateInput) (*model.Resource, error) {
	ctx, span := tracing.StartSpan(ctx, "resource.create")
	defer span.End()

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, validationf("Title is required")
	}

	if in.File == nil || in.File.Body == nil {
		return nil, validationf("File is required")
	}

	if in.OwnerID == "" {
		return nil, newError(KindAuth, "Access token required", nil)
	}

	if err := s.ready(); err != nil {
		return nil, err
	}

	stored, err := s.blob.Put(ctx, *in.File)
	if err != nil {
		tracing.RecordError(span, err)

		return nil, newError(KindStorage, "failed to store file", err)
	}

	res := &model.Resource{
		ID:               model.NewID(),
		Title:            title,
		Description:      in.Description,
		FileLocator:      stored.Locator,
		StorageID:        stored.StorageID,
		OriginalFileName: in.File.OriginalName,
		FileSize:         stored.Size,
		MimeType:         in.File.ContentType,
		OwnerID:          in.OwnerID,
	}
	res.SetTags(ParseTags(in.Tags))

	if err := s.db.WithContext(ctx).Omit("Owner").Create(res).Error; err != nil {
		tracing.RecordError(span, err)
		s.discard(ctx, blob.Ref{Locator: stored.Locator, StorageID: stored.StorageID})

		return nil, internalErr("failed to save resource", err)
	}

	created, err := s.find(ctx, res.ID)
	if err != nil {
		return nil, err
	}

	metrics.ResourceOps.WithLabelValues("create").Inc()
	s.invalidate(ctx)

	s.publish(ctx, queue.TopicResourceCreated, s.events.ResourceCreated(ctx, queue.ResourceCreatedPayload{
		ResourceID: created.ID,
		OwnerID:    created.OwnerID,
		Title:      created.Title,
		Tags:       created.TagNames(),
		File:       fileRef(created),
	}))

	log.Ctx(ctx).Info().Str("resource", created.ID).Str("owner", created.OwnerID).Msg("resource created")

	return created, nil
}

// List 返回全部资源，search 为逗号分隔关键字，最新的在前.
func (s *ResourceService) List(ctx context.Context, search string) ([]model.Resource, error) {
	return s.Search(ctx, Filter{Keywords: ParseKeywords(search)})
}

// ListMine 只返回 ownerID 的资源.
func (s *ResourceService) ListMine(ctx context.Context, ownerID, search string) ([]model.Resource, error) {
	if ownerID == "" {
		return nil, newError(KindAuth, "Access token required", nil)
	}

	return s.Search(ctx, Filter{OwnerID: ownerID, Keywords: ParseKeywords(search)})
}

// Search 按过滤条件检索.
func (s *ResourceService) Search(ctx context.Context, f Filter) ([]model.Resource, error) {
	ctx, span := tracing.StartSpan(ctx, "resource.search")
	defer span.End()

	if s.db == nil {
		return nil, internalErr("database not initialized", nil)
	}

	resources := make([]model.Resource, 0)
	if err := resourceQuery(s.db.WithContext(ctx), f).Find(&resources).Error; err != nil {
		tracing.RecordError(span, err)

		return nil, internalErr("failed to list resources", err)
	}

	return resources, nil
}

// Get 按 ID 获取资源.
func (s *ResourceService) Get(ctx context.Context, id string) (*model.Resource, error) {
	if s.db == nil {
		return nil, internalErr("database not initialized", nil)
	}

	return s.find(ctx, id)
}

// Update 只有所有者可以修改 title、description、tags.
func (s *ResourceService) Update(ctx context.Context, callerID, id string, in UpdateInput) (*model.Resource, error) {
	ctx, span := tracing.StartSpan(ctx, "resource.update")
	defer span.End()

	if s.db == nil {
		return nil, internalErr("database not initialized", nil)
	}

	if _, err := s.owned(ctx, callerID, id); err != nil {
		return nil, err
	}

	updates := map[string]any{}

	var fields []string

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, validationf("Title cannot be empty")
		}

		updates["title"] = title
		updates["title_fold"] = model.Fold(title)
		fields = append(fields, "title")
	}

	if in.Description != nil {
		updates["description"] = *in.Description
		updates["description_fold"] = model.Fold(*in.Description)
		fields = append(fields, "description")
	}

	if in.Tags != nil {
		fields = append(fields, "tags")
	}

	if len(fields) > 0 {
		updates["updated_at"] = time.Now().UTC()

		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&model.Resource{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return err
			}

			if in.Tags == nil {
				return nil
			}

			return replaceTags(tx, id, ParseTags(*in.Tags))
		})
		if err != nil {
			tracing.RecordError(span, err)

			return nil, internalErr("failed to update resource", err)
		}
	}

	updated, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return updated, nil
	}

	metrics.ResourceOps.WithLabelValues("update").Inc()
	s.invalidate(ctx)

	s.publish(ctx, queue.TopicResourceUpdated, s.events.ResourceUpdated(ctx, queue.ResourceUpdatedPayload{
		ResourceID: updated.ID,
		OwnerID:    updated.OwnerID,
		Fields:     fields,
	}))

	return updated, nil
}

// Delete 只有所有者可以删除；blob 删除失败只记录日志，记录总会被删除.
func (s *ResourceService) Delete(ctx context.Context, callerID, id string) error {
	ctx, span := tracing.StartSpan(ctx, "resource.delete")
	defer span.End()

	if s.db == nil {
		return internalErr("database not initialized", nil)
	}

	res, err := s.owned(ctx, callerID, id)
	if err != nil {
		return err
	}

	blobDeleted := s.discard(ctx, blob.Ref{Locator: res.FileLocator, StorageID: res.StorageID})

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("resource_id = ?", id).Delete(&model.ResourceTag{}).Error; err != nil {
			return err
		}

		return tx.Where("id = ?", id).Delete(&model.Resource{}).Error
	})
	if err != nil {
		tracing.RecordError(span, err)

		return internalErr("failed to delete resource", err)
	}

	metrics.ResourceOps.WithLabelValues("delete").Inc()
	s.invalidate(ctx)

	s.publish(ctx, queue.TopicResourceDeleted, s.events.ResourceDeleted(ctx, queue.ResourceDeletedPayload{
		ResourceID:  res.ID,
		OwnerID:     res.OwnerID,
		File:        fileRef(res),
		BlobDeleted: blobDeleted,
	}))

	log.Ctx(ctx).Info().Str("resource", id).Bool("blob_deleted", blobDeleted).Msg("resource deleted")

	return nil
}

// ReferencedKeys 返回所有记录引用的 blob key，用于孤儿清理.
func (s *ResourceService) ReferencedKeys(ctx context.Context) (map[string]struct{}, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	keys := make(map[string]struct{})

	var batch []model.Resource

	err := s.db.WithContext(ctx).
		Model(&model.Resource{}).
		Select("id", "file_locator", "storage_id").
		FindInBatches(&batch, 500, func(_ *gorm.DB, _ int) error {
			for _, r := range batch {
				key, err := s.blob.Key(blob.Ref{Locator: r.FileLocator, StorageID: r.StorageID})
				if err != nil {
					// 无法换算的引用不影响其它 key
					continue
				}

				keys[key] = struct{}{}
			}

			return nil
		}).Error
	if err != nil {
		return nil, internalErr("failed to collect blob references", err)
	}

	return keys, nil
}

func (s *ResourceService) ready() error {
	if s.db == nil {
		return internalErr("database not initialized", nil)
	}

	if s.blob == nil {
		return newError(KindStorage, "blob store not initialized", nil)
	}

	return nil
}

func (s *ResourceService) find(ctx context.Context, id string) (*model.Resource, error) {
	var res model.Resource

	err := withDetails(s.db.WithContext(ctx)).Where("resources.id = ?", id).Take(&res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "Resource not found", nil)
		}

		return nil, internalErr("failed to load resource", err)
	}

	return &res, nil
}

// owned 先判断存在再判断所有权，与请求体是否合法无关.
// Owned 返回调用者拥有的资源；不存在为 KindNotFound，非所有者为 KindForbidden.
func (s *ResourceService) Owned(ctx context.Context, callerID, id string) (*model.Resource, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	return s.owned(ctx, callerID, id)
}

func (s *ResourceService) owned(ctx context.Context, callerID, id string) (*model.Resource, error) {
	var res model.Resource

	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&res).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, "Resource not found", nil)
		}

		return nil, internalErr("failed to load resource", err)
	}

	if callerID == "" || res.OwnerID != callerID {
		return nil, newError(KindForbidden, "Not authorized to modify this resource", nil)
	}

	return &res, nil
}

// discard 尽力删除 blob，返回是否成功.
func (s *ResourceService) discard(ctx context.Context, ref blob.Ref) bool {
	if s.blob == nil || (ref.Locator == "" && ref.StorageID == "") {
		return false
	}

	if err := s.blob.Delete(ctx, ref); err != nil {
		metrics.BlobDeleteFailures.Inc()
		log.Ctx(ctx).Warn().Err(err).
			Str("locator", ref.Locator).
			Str("storage_id", ref.StorageID).
			Msg("blob delete failed, leaving it to the orphan sweeper")

		return false
	}

	return true
}

func (s *ResourceService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}

	if _, err := s.cache.Bump(ctx, cache.NamespaceResources); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("cache invalidation failed")

		return
	}

	metrics.CacheEvents.WithLabelValues("invalidate").Inc()
}

func (s *ResourceService) publish(ctx context.Context, topic string, err error) {
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("topic", topic).Msg("publish event failed")
	}
}

func replaceTags(tx *gorm.DB, id string, tags []string) error {
	if err := tx.Where("resource_id = ?", id).Delete(&model.ResourceTag{}).Error; err != nil {
		return err
	}

	if len(tags) == 0 {
		return nil
	}

	return tx.Create(model.NewTags(id, tags)).Error
}

func fileRef(r *model.Resource) *queue.FileRef {
	return &queue.FileRef{
		Locator:   r.FileLocator,
		StorageID: r.StorageID,
		Name:      r.OriginalFileName,
		Size:      r.FileSize,
		MimeType:  r.MimeType,
	}
}
