package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/cache"
	"github.com/yeisme/sharevault/pkg/internal/model"
	"github.com/yeisme/sharevault/pkg/internal/service"
	"github.com/yeisme/sharevault/pkg/internal/storage/blob"
	"github.com/yeisme/sharevault/pkg/internal/storage/db"
	"github.com/yeisme/sharevault/pkg/internal/storage/kv"
	"github.com/yeisme/sharevault/pkg/internal/testutil"
)

type fixture struct {
	db    *db.Client
	store *testutil.Store
	cache *cache.Cache
	svc   *service.ResourceService
	alice *model.Account
	bob   *model.Account
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{db: testutil.NewDB(t), store: testutil.NewStore(t)}

	kvStore, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)

	f.cache = cache.NewCache(kvStore)
	f.svc = service.NewResourceServiceWith(service.Deps{DB: f.db, Blob: f.store, Cache: f.cache})
	f.alice = f.account(t, "alice")
	f.bob = f.account(t, "bob")

	return f
}

func (f *fixture) account(t *testing.T, name string) *model.Account {
	t.Helper()

	acc := &model.Account{Username: name, Email: name + "@example.com", PasswordHash: "x"}
	require.NoError(t, f.db.Create(acc).Error)

	return acc
}

func file(name string) *blob.PutInput {
	return &blob.PutInput{
		Body:         strings.NewReader("payload of " + name),
		Size:         -1,
		OriginalName: name,
		ContentType:  "text/plain",
	}
}

func (f *fixture) create(t *testing.T, owner *model.Account, title, desc, tags string) *model.Resource {
	t.Helper()

	res, err := f.svc.Create(context.Background(), service.CreateInput{
		OwnerID:     owner.ID,
		Title:       title,
		Description: desc,
		Tags:        tags,
		File:        file(strings.TrimSpace(title) + ".txt"),
	})
	require.NoError(t, err)

	return res
}

func titles(rs []model.Resource) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Title)
	}

	return out
}

func ptr(s string) *string { return &s }

func TestCreate(t *testing.T) {
	f := newFixture(t)

	res := f.create(t, f.alice, "  React Basics ", "intro", "Foo, bar ,, BAZ")

	assert.Len(t, res.ID, 26)
	assert.Equal(t, "React Basics", res.Title)
	assert.Equal(t, []string{"foo", "bar", "baz"}, res.TagNames())
	assert.Equal(t, f.alice.ID, res.OwnerID)
	assert.Equal(t, "alice", res.Owner.Username)
	assert.Equal(t, "alice@example.com", res.Owner.Email)
	assert.True(t, strings.HasPrefix(res.FileLocator, "/uploads/"))
	assert.Equal(t, "React Basics.txt", res.OriginalFileName)
	assert.Positive(t, res.FileSize)

	key, err := f.store.Key(blob.Ref{Locator: res.FileLocator})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(f.store.Dir(), key))
	assert.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, service.CreateInput{OwnerID: f.alice.ID, Title: "   ", File: file("a")})
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, 400, service.KindOf(err).HTTPStatus())

	_, err = f.svc.Create(ctx, service.CreateInput{OwnerID: f.alice.ID, Title: "ok"})
	assert.ErrorIs(t, err, service.ErrValidation)

	// 校验失败时不写 blob
	var n int
	require.NoError(t, f.store.List(ctx, func(blob.Object) error { n++; return nil }))
	assert.Zero(t, n)
}

func TestCreatePutFailure(t *testing.T) {
	f := newFixture(t)
	f.store.FailPut(errors.New("disk full"))

	_, err := f.svc.Create(context.Background(), service.CreateInput{OwnerID: f.alice.ID, Title: "t", File: file("t")})
	require.ErrorIs(t, err, service.ErrStorage)
	assert.Equal(t, 500, service.KindOf(err).HTTPStatus())

	all, err := f.svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSearchAndOfOrs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, f.alice, "Alpha only", "", "a-tag")
	f.create(t, f.alice, "Both", "mentions beta", "alpha")
	f.create(t, f.bob, "Neither", "", "gamma")

	got, err := f.svc.List(ctx, "alpha, beta")
	require.NoError(t, err)
	assert.Equal(t, []string{"Both"}, titles(got))

	got, err = f.svc.List(ctx, "ALPHA")
	require.NoError(t, err)
	assert.Equal(t, []string{"Both", "Alpha only"}, titles(got))
}

func TestSearchEmptyTermIsNoFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, f.alice, "one", "", "")
	f.create(t, f.bob, "two", "", "")

	for _, term := range []string{"", "   ", " , ,, "} {
		got, err := f.svc.List(ctx, term)
		require.NoError(t, err)
		assert.Equal(t, []string{"two", "one"}, titles(got), "term %q", term)
	}
}

func TestSearchMetacharactersAreLiteral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, f.alice, "100% coverage", "", "")
	f.create(t, f.alice, "snake_case", "", "")
	f.create(t, f.alice, "plain", "100 items", "exc")

	got, err := f.svc.List(ctx, "%")
	require.NoError(t, err)
	assert.Equal(t, []string{"100% coverage"}, titles(got))

	got, err = f.svc.List(ctx, "e_c")
	require.NoError(t, err)
	assert.Equal(t, []string{"snake_case"}, titles(got))

	got, err = f.svc.List(ctx, "!")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchFoldsNonASCII(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.create(t, f.alice, "Über Go", "Résumé notes", "Ünicode")

	for _, term := range []string{"über", "Über", "ÜBER", "résumé", "RÉSUMÉ", "ünicode", "ÜNICODE"} {
		got, err := f.svc.List(ctx, term)
		require.NoError(t, err)
		assert.Equal(t, []string{"Über Go"}, titles(got), "term %q", term)
	}

	_, err := f.svc.Update(ctx, f.alice.ID, res.ID, service.UpdateInput{
		Title:       ptr("Ärger"),
		Description: ptr("ÉTÉ"),
	})
	require.NoError(t, err)

	for _, term := range []string{"ärger", "ÄRGER", "été"} {
		got, err := f.svc.List(ctx, term)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ärger"}, titles(got), "term %q", term)
	}

	got, err := f.svc.List(ctx, "über")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListMine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.create(t, f.alice, "mine", "", "go")
	f.create(t, f.bob, "theirs", "", "go")

	got, err := f.svc.ListMine(ctx, f.alice.ID, "go")
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, titles(got))

	got, err = f.svc.ListMine(ctx, f.bob.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"theirs"}, titles(got))
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.create(t, f.alice, "old", "desc", "a, b")

	updated, err := f.svc.Update(ctx, f.alice.ID, res.ID, service.UpdateInput{Title: ptr("new")})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, "desc", updated.Description)
	assert.Equal(t, []string{"a", "b"}, updated.TagNames())
	assert.Equal(t, res.FileLocator, updated.FileLocator)
	assert.Equal(t, res.OwnerID, updated.OwnerID)

	updated, err = f.svc.Update(ctx, f.alice.ID, res.ID, service.UpdateInput{Tags: ptr(" X ,y")})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, updated.TagNames())

	// 空串清空标签
	updated, err = f.svc.Update(ctx, f.alice.ID, res.ID, service.UpdateInput{Tags: ptr("")})
	require.NoError(t, err)
	assert.Empty(t, updated.TagNames())

	_, err = f.svc.Update(ctx, f.alice.ID, res.ID, service.UpdateInput{Title: ptr("  ")})
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestUpdateDeleteAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.create(t, f.alice, "t", "", "")

	_, err := f.svc.Update(ctx, f.bob.ID, res.ID, service.UpdateInput{Title: ptr("")})
	assert.ErrorIs(t, err, service.ErrForbidden, "ownership is checked before payload")

	err = f.svc.Delete(ctx, f.bob.ID, res.ID)
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = f.svc.Update(ctx, f.alice.ID, "missing", service.UpdateInput{})
	assert.ErrorIs(t, err, service.ErrNotFound)

	err = f.svc.Delete(ctx, f.alice.ID, "missing")
	assert.ErrorIs(t, err, service.ErrNotFound)

	still, err := f.svc.Get(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, still.OwnerID)
}

func TestDeleteSurvivesBlobFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.create(t, f.alice, "t", "", "x")
	f.store.FailDelete(errors.New("bucket unreachable"))

	require.NoError(t, f.svc.Delete(ctx, f.alice.ID, res.ID))
	assert.Len(t, f.store.Deleted(), 1)

	_, err := f.svc.Get(ctx, res.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	var tags int64
	require.NoError(t, f.db.Model(&model.ResourceTag{}).Count(&tags).Error)
	assert.Zero(t, tags)
}

func TestMutationsBumpCacheGeneration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	gen := func() int64 {
		g, err := f.cache.Generation(ctx, cache.NamespaceResources)
		require.NoError(t, err)

		return g
	}

	res := f.create(t, f.alice, "t", "", "")
	assert.Equal(t, int64(1), gen())

	_, err := f.svc.Update(ctx, f.alice.ID, res.ID, service.UpdateInput{Description: ptr("d")})
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen())

	// 无字段的更新不算修改
	_, err = f.svc.Update(ctx, f.alice.ID, res.ID, service.UpdateInput{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen())

	require.NoError(t, f.svc.Delete(ctx, f.alice.ID, res.ID))
	assert.Equal(t, int64(3), gen())
}

func TestScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.create(t, f.alice, "Tutorial", "", "react, Node, Tutorial")

	got, err := f.svc.List(ctx, "node")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, res.ID, got[0].ID)

	_, err = f.svc.Update(ctx, f.bob.ID, res.ID, service.UpdateInput{Title: ptr("X")})
	assert.ErrorIs(t, err, service.ErrForbidden)

	updated, err := f.svc.Update(ctx, f.alice.ID, res.ID, service.UpdateInput{Title: ptr("X")})
	require.NoError(t, err)
	assert.Equal(t, "X", updated.Title)
	assert.Equal(t, []string{"react", "node", "tutorial"}, updated.TagNames())

	require.NoError(t, f.svc.Delete(ctx, f.alice.ID, res.ID))

	got, err = f.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReferencedKeys(t *testing.T) {
	f := newFixture(t)

	a := f.create(t, f.alice, "a", "", "")
	b := f.create(t, f.bob, "b", "", "")

	keys, err := f.svc.ReferencedKeys(context.Background())
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	for _, r := range []*model.Resource{a, b} {
		k, err := f.store.Key(blob.Ref{Locator: r.FileLocator})
		require.NoError(t, err)
		assert.Contains(t, keys, k)
	}
}
