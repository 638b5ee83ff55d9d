package app

import (
	"strings"

	"github.com/charlesng35/recipekeeper/pkg/logger"
)

// ConfigureLogging initialises the global logger with the provided level, defaulting to info.
func ConfigureLogging(level, format string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.Init(level, logger.Options{
		Format:      format,
		Development: strings.EqualFold(level, "debug"),
	})
}
