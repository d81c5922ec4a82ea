package utils

import (
	"net/url"
	"testing"

	"github.com/cheekybits/is"
)

func TestPostgresDSNDefaults(t *testing.T) {
	is := is.New(t)
	for _, k := range []string{"PG_DSN", "PG_HOST", "PG_PORT", "PG_USER", "PG_PASSWORD", "PG_DB", "PG_SSLMODE"} {
		t.Setenv(k, "")
	}
	is.Equal(BuildPostgresDSNFromEnv(), "postgres://postgres@localhost:5432/spatial?sslmode=disable")
}

func TestPostgresDSNEscapesPassword(t *testing.T) {
	is := is.New(t)
	t.Setenv("PG_DSN", "")
	t.Setenv("PG_HOST", "db.internal")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("PG_USER", "points")
	t.Setenv("PG_PASSWORD", "p@ss:w/rd")
	t.Setenv("PG_DB", "taxi")
	t.Setenv("PG_SSLMODE", "require")
	u, err := url.Parse(BuildPostgresDSNFromEnv())
	is.NoErr(err)
	is.Equal(u.Host, "db.internal:6543")
	is.Equal(u.User.Username(), "points")
	pass, _ := u.User.Password()
	is.Equal(pass, "p@ss:w/rd")
	is.Equal(u.Path, "/taxi")
	is.Equal(u.Query().Get("sslmode"), "require")
}

func TestPostgresDSNOverride(t *testing.T) {
	is := is.New(t)
	t.Setenv("PG_DSN", " host=/var/run/postgresql dbname=spatial ")
	t.Setenv("PG_HOST", "ignored")
	is.Equal(BuildPostgresDSNFromEnv(), "host=/var/run/postgresql dbname=spatial")
}
