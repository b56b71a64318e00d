package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/opensource-finance/lavandowski/internal/domain"
)

// replicaDSN returns the database/sql driver name and DSN for a local
// replica of the warehouse tables.
func replicaDSN(cfg domain.WarehouseConfig) (string, string, error) {
	switch cfg.Driver {
	case "sqlite":
		return "sqlite", sqliteDSN(cfg.SQLitePath), nil
	case "postgres":
		return "postgres", postgresDSN(cfg), nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
}

// sqliteDSN enables WAL so the stats endpoint can read while a run
// appends to analysis_log.
func sqliteDSN(path string) string {
	if path == "" {
		path = "./lavandowski.db"
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + q.Encode()
}

// postgresDSN builds a URL DSN so credentials with spaces or quotes survive.
func postgresDSN(cfg domain.WarehouseConfig) string {
	host := cfg.PostgresHost
	if host == "" {
		host = "localhost"
	}
	port := cfg.PostgresPort
	if port == 0 {
		port = 5432
	}
	db := cfg.PostgresDB
	if db == "" {
		db = "lavandowski"
	}
	ssl := cfg.PostgresSSLMode
	if ssl == "" {
		ssl = "disable"
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   host + ":" + strconv.Itoa(port),
		Path:   "/" + db,
	}
	if cfg.PostgresUser != "" {
		u.User = url.UserPassword(cfg.PostgresUser, cfg.PostgresPassword)
	}
	q := url.Values{}
	q.Set("sslmode", ssl)
	q.Set("application_name", "lavandowski")
	q.Set("connect_timeout", "10")
	u.RawQuery = q.Encode()
	return u.String()
}

func openReplica(cfg domain.WarehouseConfig) (*sql.DB, error) {
	driver, dsn, err := replicaDSN(cfg)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		if dir := filepath.Dir(cfg.SQLitePath); cfg.SQLitePath != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create replica directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s replica: %w", cfg.Driver, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach %s replica: %w", cfg.Driver, err)
	}
	return db, nil
}
