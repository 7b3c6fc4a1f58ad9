//go:build !no_sqlite && cgo

package db

import (
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/configs"
)

// CGo 版本使用 mattn/go-sqlite3，DSN 中的 _pragma 参数对它无效，改用 _foreign_keys.
func init() {
	RegisterDialectorFactory(configs.SQLite, func(dsn string) gorm.Dialector {
		return sqlite.Open(cgoDSN(dsn))
	})
}
