//go:build !no_mysql

package db

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/yeisme/sharevault/pkg/configs"
)

func init() {
	RegisterDialectorFactory(configs.MySQL, func(dsn string) gorm.Dialector {
		return mysql.Open(dsn)
	})
}
