package jobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/configs"
	"github.com/yeisme/sharevault/pkg/internal/storage/blob"
	"github.com/yeisme/sharevault/pkg/internal/testutil"
)

type staticRefs map[string]struct{}

func (r staticRefs) ReferencedKeys(context.Context) (map[string]struct{}, error) {
	return r, nil
}

func put(t *testing.T, store *testutil.Store, name string, age time.Duration) string {
	t.Helper()

	stored, err := store.Put(context.Background(), blob.PutInput{Body: strings.NewReader(name), OriginalName: name})
	require.NoError(t, err)

	key, err := store.Key(blob.Ref{Locator: stored.Locator})
	require.NoError(t, err)

	when := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(filepath.Join(store.Dir(), key), when, when))

	return key
}

func TestOrphanSweep(t *testing.T) {
	store := testutil.NewStore(t)

	kept := put(t, store, "kept.txt", 48*time.Hour)
	orphan := put(t, store, "orphan.txt", 48*time.Hour)
	fresh := put(t, store, "fresh.txt", time.Minute)

	sweeper := NewOrphanSweeper(staticRefs{kept: {}}, store, nil, configs.SchedulerConfig{
		OrphanGrace:      24 * time.Hour,
		OrphanSweepRate:  1000,
		OrphanSweepBatch: 10,
	})

	n, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var left []string
	require.NoError(t, store.List(context.Background(), func(o blob.Object) error {
		left = append(left, o.Key)
		return nil
	}))
	assert.ElementsMatch(t, []string{kept, fresh}, left)
	assert.NotContains(t, left, orphan)
}

func TestOrphanSweepBatchLimit(t *testing.T) {
	store := testutil.NewStore(t)

	for _, name := range []string{"a", "b", "c"} {
		put(t, store, name, 48*time.Hour)
	}

	sweeper := NewOrphanSweeper(staticRefs{}, store, nil, configs.SchedulerConfig{
		OrphanGrace:      time.Hour,
		OrphanSweepRate:  1000,
		OrphanSweepBatch: 2,
	})

	n, err := sweeper.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestOrphanSweepCancelled(t *testing.T) {
	store := testutil.NewStore(t)
	put(t, store, "a", 48*time.Hour)
	put(t, store, "b", 48*time.Hour)

	sweeper := NewOrphanSweeper(staticRefs{}, store, nil, configs.SchedulerConfig{
		OrphanGrace:      time.Hour,
		OrphanSweepRate:  0.001,
		OrphanSweepBatch: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	n, err := sweeper.Run(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, n, "first delete uses the initial burst token")
}
