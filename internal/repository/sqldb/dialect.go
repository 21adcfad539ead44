package sqldb

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

// Dialect selects the database/sql driver and SQL placeholder style.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseDialect() goose.Dialect {
	if d == DialectPostgres {
		return goose.DialectPostgres
	}
	return goose.DialectSQLite3
}

// Rebind rewrites '?' placeholders to $1, $2, ... for Postgres and leaves SQLite queries unchanged.
func (d Dialect) Rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ParseURL picks the dialect for a database URL and returns the DSN to hand to its driver.
// Accepted forms: postgres://..., postgresql://..., sqlite://path, or a bare sqlite file path.
func ParseURL(databaseURL string) (Dialect, string, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return "", "", fmt.Errorf("database url is required")
	}

	if u, err := url.Parse(databaseURL); err == nil && u.Scheme != "" {
		switch u.Scheme {
		case "postgres", "postgresql":
			return DialectPostgres, databaseURL, nil
		case "sqlite", "sqlite3":
			path := strings.TrimPrefix(databaseURL, u.Scheme+"://")
			if path == "" {
				return "", "", fmt.Errorf("sqlite database path is required")
			}
			return DialectSQLite, path, nil
		case "file":
			return DialectSQLite, databaseURL, nil
		default:
			if len(u.Scheme) > 1 {
				return "", "", fmt.Errorf("unsupported database scheme %q", u.Scheme)
			}
			// windows drive letter, fall through to a file path
		}
	}

	return DialectSQLite, databaseURL, nil
}
