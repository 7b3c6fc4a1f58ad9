package db

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/sharevault/pkg/configs"
)

type widget struct {
	ID   uint
	Name string
}

func TestOpenAndMigrate(t *testing.T) {
	ctx := context.Background()

	client, err := Open(ctx, sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Migrate(ctx, &widget{}))
	require.NoError(t, client.Create(&widget{Name: "a"}).Error)

	var n int64
	require.NoError(t, client.Model(&widget{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestNewUnsupportedType(t *testing.T) {
	_, err := New(context.Background(), &configs.DBConfig{Type: "oracle", Database: "x"})
	assert.Error(t, err)
}

func TestRegisteredTypes(t *testing.T) {
	types := GetRegisteredDBTypes()
	assert.Contains(t, types, configs.SQLite)
}

func TestCgoDSN(t *testing.T) {
	assert.Equal(t,
		"file:sv.db?_foreign_keys=1&_busy_timeout=5000",
		cgoDSN("file:sv.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"))
}
