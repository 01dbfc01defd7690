// internal/config/config.go
package config

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Config carries the process-level settings, all sourced from the
// environment. A .env file is honored via godotenv autoload in main.
type Config struct {
	// Addr is the listen address, ":" + PORT.
	Addr string
	// RoomTTL is the hard room lifetime (ROOM_TTL, Go duration syntax).
	RoomTTL time.Duration
	// EmptyGrace is how long an empty room lingers before destruction
	// (ROOM_EMPTY_GRACE).
	EmptyGrace time.Duration
	// StaticDir is the directory served at / (STATIC_DIR).
	StaticDir string
}

// Load reads the environment, falling back to defaults and logging any value
// it cannot parse.
func Load(log logrus.FieldLogger) Config {
	cfg := Config{
		Addr:       ":3000",
		RoomTTL:    4 * time.Hour,
		EmptyGrace: time.Minute,
		StaticDir:  "public",
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		cfg.StaticDir = dir
	}
	cfg.RoomTTL = duration(log, "ROOM_TTL", cfg.RoomTTL)
	cfg.EmptyGrace = duration(log, "ROOM_EMPTY_GRACE", cfg.EmptyGrace)
	return cfg
}

func duration(log logrus.FieldLogger, key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.WithFields(logrus.Fields{"var": key, "value": v}).
			Warnf("unparseable duration, using %s", fallback)
		return fallback
	}
	return d
}
