package database

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Open connects to the database named by rawURL and verifies the
// connection.  postgres:// and postgresql:// URLs use lib/pq; mysql://
// URLs and raw go-sql-driver DSNs use MySQL.
func Open(ctx context.Context, rawURL string) (*sqlx.DB, error) {
	driver, dsn, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ParseURL returns the driver name and the DSN that driver expects.
func ParseURL(rawURL string) (driver, dsn string, err error) {
	switch {
	case rawURL == "":
		return "", "", fmt.Errorf("database url is empty")
	case strings.HasPrefix(rawURL, "postgres://"), strings.HasPrefix(rawURL, "postgresql://"):
		return DriverPostgres, rawURL, nil
	case strings.HasPrefix(rawURL, "mysql://"):
		dsn, err := mysqlDSNFromURL(rawURL)
		return DriverMySQL, dsn, err
	}

	// anything else must already be a go-sql-driver DSN
	cfg, err := mysql.ParseDSN(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("unrecognised database url: %w", err)
	}
	withMySQLDefaults(cfg)
	return DriverMySQL, cfg.FormatDSN(), nil
}

func mysqlDSNFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse mysql url: %w", err)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = u.Hostname() + ":3306"
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	withMySQLDefaults(cfg)
	return cfg.FormatDSN(), nil
}

// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
func withMySQLDefaults(cfg *mysql.Config) {
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
}
