package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/storage/blob"
	"github.com/yeisme/sharevault/pkg/log"
	"github.com/yeisme/sharevault/pkg/metrics"
	"github.com/yeisme/sharevault/pkg/queue"
	"github.com/yeisme/sharevault/pkg/tracing"
)

var errBatchFull = errors.New("batch full")

// ReferenceSource 返回所有记录引用的 blob key.
type ReferenceSource interface {
	ReferencedKeys(ctx context.Context) (map[string]struct{}, error)
}

// OrphanSweeper 删除超过宽限期仍无记录引用的 blob.
// 创建资源时先写 blob 再写记录，宽限期保证正在创建的资源不会被误删.
type OrphanSweeper struct {
	refs    ReferenceSource
	store   blob.Store
	events  *queue.Emitter
	grace   time.Duration
	batch   int
	limiter *rate.Limiter
	now     func() time.Time
}

// NewOrphanSweeper 创建清理器，删除速度受 OrphanSweepRate 限制.
func NewOrphanSweeper(refs ReferenceSource, store blob.Store, events *queue.Emitter, cfg configs.SchedulerConfig) *OrphanSweeper {
	r := cfg.OrphanSweepRate
	if r <= 0 {
		r = configs.DefaultOrphanSweepRate
	}

	batch := cfg.OrphanSweepBatch
	if batch <= 0 {
		batch = configs.DefaultOrphanSweepBatch
	}

	return &OrphanSweeper{
		refs:    refs,
		store:   store,
		events:  events,
		grace:   cfg.OrphanGrace,
		batch:   batch,
		limiter: rate.NewLimiter(rate.Limit(r), 1),
		now:     time.Now,
	}
}

// Run 执行一次清理，返回删除的数量.
func (s *OrphanSweeper) Run(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "blob.orphan_sweep")
	defer span.End()

	l := log.Ctx(ctx).With().Str("job", JobOrphanSweep).Logger()

	if s.store == nil {
		return 0, fmt.Errorf("blob store not initialized")
	}

	referenced, err := s.refs.ReferencedKeys(ctx)
	if err != nil {
		tracing.RecordError(span, err)

		return 0, err
	}

	cutoff := s.now().Add(-s.grace)

	var orphans []blob.Object

	err = s.store.List(ctx, func(o blob.Object) error {
		if _, ok := referenced[o.Key]; ok || o.ModTime.After(cutoff) {
			return nil
		}

		orphans = append(orphans, o)
		if len(orphans) >= s.batch {
			return errBatchFull
		}

		return nil
	})
	if err != nil && !errors.Is(err, errBatchFull) {
		tracing.RecordError(span, err)

		return 0, fmt.Errorf("list blobs: %w", err)
	}

	removed := 0

	for _, o := range orphans {
		if err := s.limiter.Wait(ctx); err != nil {
			return removed, err
		}

		if err := s.store.Delete(ctx, blob.Ref{StorageID: o.Key}); err != nil {
			l.Warn().Err(err).Str("key", o.Key).Msg("delete orphan blob failed")
			continue
		}

		removed++

		metrics.OrphansSwept.Inc()

		if err := s.events.BlobOrphaned(ctx, queue.BlobOrphanedPayload{
			Backend: s.store.Type(),
			Key:     o.Key,
			Size:    o.Size,
			ModTime: o.ModTime,
		}); err != nil {
			l.Warn().Err(err).Str("key", o.Key).Msg("publish orphan event failed")
		}
	}

	l.Info().
		Int("referenced", len(referenced)).
		Int("candidates", len(orphans)).
		Int("removed", removed).
		Msg("orphan sweep finished")

	return removed, nil
}
