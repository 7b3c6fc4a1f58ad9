package db

import "strings"

// cgoDSN 把 glebarez 风格的 _pragma 参数改写成 mattn/go-sqlite3 的参数.
func cgoDSN(dsn string) string {
	r := strings.NewReplacer(
		"_pragma=foreign_keys(1)", "_foreign_keys=1",
		"_pragma=busy_timeout(5000)", "_busy_timeout=5000",
	)

	return r.Replace(dsn)
}
