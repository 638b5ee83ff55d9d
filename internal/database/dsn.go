package database

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	defaultPostgresPort = 5432
	defaultMySQLPort    = 3306

	// Extraction history is compared against retention cutoffs in UTC.
	historyTimeZone = "UTC"
)

var errMissingCredentials = errors.New("user and database name are required")

func openPostgres(cfg Config) (*gorm.DB, error) {
	dsn, err := buildPostgresDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(postgres.Open(dsn), gormConfig())
}

// buildPostgresDSN renders a postgres:// URL and validates it with pgx so a broken
// override fails at startup rather than on the first history write.
func buildPostgresDSN(cfg Config) (string, error) {
	dsn := cfg.DSN
	if dsn == "" {
		if cfg.User == "" || cfg.Name == "" {
			return "", fmt.Errorf("postgres: %w", errMissingCredentials)
		}

		query := url.Values{}
		query.Set("sslmode", "disable")
		query.Set("TimeZone", historyTimeZone)
		query.Set("application_name", "recipekeeper")
		for key, value := range cfg.Options {
			query.Set(key, value)
		}

		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     hostPort(cfg.Host, "localhost", cfg.Port, defaultPostgresPort),
			Path:     "/" + cfg.Name,
			RawQuery: query.Encode(),
		}
		if cfg.Password == "" {
			u.User = url.User(cfg.User)
		}
		dsn = u.String()
	}

	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("postgres: invalid dsn: %w", err)
	}
	return dsn, nil
}

func openMySQL(cfg Config) (*gorm.DB, error) {
	dsn, err := buildMySQLDSN(cfg)
	if err != nil {
		return nil, err
	}
	return gorm.Open(mysql.Open(dsn), gormConfig())
}

// buildMySQLDSN formats the DSN with the driver's own encoder. Recipes carry emoji
// and accented ingredient names, hence utf8mb4.
func buildMySQLDSN(cfg Config) (string, error) {
	if cfg.DSN != "" {
		if _, err := gomysql.ParseDSN(cfg.DSN); err != nil {
			return "", fmt.Errorf("mysql: invalid dsn: %w", err)
		}
		return cfg.DSN, nil
	}
	if cfg.User == "" || cfg.Name == "" {
		return "", fmt.Errorf("mysql: %w", errMissingCredentials)
	}

	dsnCfg := gomysql.NewConfig()
	dsnCfg.User = cfg.User
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = hostPort(cfg.Host, "127.0.0.1", cfg.Port, defaultMySQLPort)
	dsnCfg.DBName = cfg.Name
	dsnCfg.ParseTime = true
	dsnCfg.Loc = time.UTC
	dsnCfg.Collation = "utf8mb4_unicode_ci"
	if len(cfg.Options) > 0 {
		dsnCfg.Params = make(map[string]string, len(cfg.Options))
		for key, value := range cfg.Options {
			dsnCfg.Params[key] = value
		}
	}
	return dsnCfg.FormatDSN(), nil
}

func hostPort(host, defaultHost string, port, defaultPort int) string {
	if host == "" {
		host = defaultHost
	}
	if port <= 0 {
		port = defaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}
