package service

import (
	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/internal/model"
)

// keywordClause 单个关键字命中 title、description 或任一标签即可.
// 三列都在写入时已折叠为小写，模式也用同一个 model.Fold.
const keywordClause = `(resources.title_fold LIKE ? ESCAPE '!'` +
	` OR resources.description_fold LIKE ? ESCAPE '!'` +
	` OR EXISTS (SELECT 1 FROM resource_tags rt WHERE rt.resource_id = resources.id AND rt.tag LIKE ? ESCAPE '!'))`

// Filter 列表过滤条件.
type Filter struct {
	// OwnerID 非空时只返回该用户的资源
	OwnerID  string
	Keywords []string
}

// applyFilter 构造 AND-of-ORs 查询：每个关键字都必须在某个字段中命中.
func applyFilter(q *gorm.DB, f Filter) *gorm.DB {
	if f.OwnerID != "" {
		q = q.Where("resources.owner_id = ?", f.OwnerID)
	}

	for _, kw := range f.Keywords {
		pattern := containsPattern(kw)
		q = q.Where(keywordClause, pattern, pattern, pattern)
	}

	return q
}

// withDetails 预加载有序标签与所有者.
func withDetails(q *gorm.DB) *gorm.DB {
	return q.
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Owner")
}

func newestFirst(q *gorm.DB) *gorm.DB {
	return q.Order("resources.created_at DESC").Order("resources.id DESC")
}

func resourceQuery(db *gorm.DB, f Filter) *gorm.DB {
	return newestFirst(withDetails(applyFilter(db.Model(&model.Resource{}), f)))
}
