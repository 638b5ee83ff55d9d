package app

import (
	"strings"

	"github.com/charlesng35/recipekeeper/internal/database"
)

// ConnectionConfig converts the database section into the database package representation.
func (d DatabaseConfig) ConnectionConfig() database.Config {
	cfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(d.Driver)),
		Path:   strings.TrimSpace(d.Path),
		DSN:    strings.TrimSpace(d.DSN),
	}

	var auth DBAuthConfig
	switch cfg.Driver {
	case "postgres", "postgresql":
		auth = d.Postgres
	case "mysql", "mariadb":
		auth = d.MySQL
	default:
		return cfg
	}

	cfg.Host = auth.Host
	cfg.Port = auth.Port
	cfg.Name = auth.Database
	cfg.User = auth.Username
	cfg.Password = auth.Password
	cfg.Options = auth.Options
	return cfg
}
