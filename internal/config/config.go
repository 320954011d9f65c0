// Package config reads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string `env:"ADDR" envDefault:":8080"`
	DictPath    string `env:"DICT_PATH" envDefault:"data/jp_dict.txt"`
	PatternsDir string `env:"PATTERNS_DIR" envDefault:"data"`
	StaticDir   string `env:"STATIC_DIR" envDefault:"static"`

	LobbyTTL      time.Duration `env:"LOBBY_TTL" envDefault:"10m"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`

	// Per-connection inbound websocket message budget.
	MsgRate  float64 `env:"WS_MSG_RATE" envDefault:"20"`
	MsgBurst int     `env:"WS_MSG_BURST" envDefault:"40"`

	Debug bool `env:"DEBUG" envDefault:"false"`
}

// Load parses the environment. A missing .env file is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
