package utils

import (
	"database/sql"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
)

// 文档注释：由环境变量得到 Postgres 连接串
// 背景：托管数据库通常直接给出完整 DSN，设置 PG_DSN 时原样使用；否则由 PG_* 分项拼接，缺省连接本机 spatial 库。
// 约束：分项拼接时用户名与密码经 url.UserPassword 转义，密码含 @ / : 等字符也能正确解析。
func BuildPostgresDSNFromEnv() string {
	if dsn := strings.TrimSpace(os.Getenv("PG_DSN")); dsn != "" {
		return dsn
	}
	user := envOr("PG_USER", "postgres")
	u := &url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(envOr("PG_HOST", "localhost"), envOr("PG_PORT", "5432")),
		Path:     "/" + envOr("PG_DB", "spatial"),
		RawQuery: url.Values{"sslmode": {envOr("PG_SSLMODE", "disable")}}.Encode(),
	}
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// OpenPostgresFromEnv：打开数据库连接；导出工具为单连接顺序读取，连接池默认很小
func OpenPostgresFromEnv() (*sql.DB, error) {
	db, err := sql.Open("postgres", BuildPostgresDSNFromEnv())
	if err != nil {
		return nil, err
	}
	maxOpen := 4
	if v := os.Getenv("PG_MAX_OPEN_CONNS"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n > 0 {
			maxOpen = n
		}
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)
	return db, nil
}
