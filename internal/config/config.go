// internal/config/config.go
//
// Server configuration.
// Sources, in increasing priority:
//   1. Built-in defaults (Default).
//   2. Optional YAML file (path from CONFIG_PATH; missing file is not an error
//      unless the path was set explicitly).
//   3. Environment variables (PORT, CLIENT_ORIGIN, DB_PATH, DAILY_SALT,
//      JWT_SECRET, COOKIE_NAME, LOG_LEVEL, BOARD_ROWS, BOARD_COLS, BOARD_CHANCE).
//
// `.env` loading happens in main via godotenv before Load is called.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/robalobadob/lightsout/apps/go-server/internal/game"
)

// Config holds all server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Board    game.Config    `yaml:"board"`
	Limits   LimitsConfig   `yaml:"limits"`
	Daily    DailyConfig    `yaml:"daily"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	LogLevel string         `yaml:"log_level"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ClientOrigin string `yaml:"client_origin"`
}

// LimitsConfig bounds what clients may request on POST /game/new.
type LimitsConfig struct {
	MaxRows          int `yaml:"max_rows"`
	MaxCols          int `yaml:"max_cols"`
	MaxSolvableTries int `yaml:"max_solvable_tries"`
}

// DailyConfig holds daily puzzle settings.
type DailyConfig struct {
	Salt string `yaml:"salt"`
}

// AuthConfig holds player token settings.
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	CookieName  string `yaml:"cookie_name"`
	ExpiresDays int    `yaml:"expires_days"`
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when nothing is provided.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: "5175", ClientOrigin: "http://localhost:5173"},
		Board:  game.DefaultConfig(),
		Limits: LimitsConfig{MaxRows: 20, MaxCols: 20, MaxSolvableTries: 200},
		Daily:  DailyConfig{Salt: "local_dev_salt"},
		Auth: AuthConfig{
			JWTSecret:   "dev_secret_change_me",
			CookieName:  "lightsout_player",
			ExpiresDays: 180,
		},
		Database: DatabaseConfig{Path: "./data/lightsout.db"},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path (if any), applies environment overrides
// and validates the board section. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	fillDefaults(&cfg)

	if err := cfg.Board.Validate(); err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}
	return &cfg, nil
}

// LoadOptional behaves like Load but treats a missing file as "no file".
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}
	return Load(path)
}

// fillDefaults restores zero values a partial YAML file may have left behind.
// Board fields are not filled: a zero chance is a legitimate choice.
func fillDefaults(cfg *Config) {
	def := Default()
	if cfg.Server.Port == "" {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.ClientOrigin == "" {
		cfg.Server.ClientOrigin = def.Server.ClientOrigin
	}
	if cfg.Limits.MaxRows == 0 {
		cfg.Limits.MaxRows = def.Limits.MaxRows
	}
	if cfg.Limits.MaxCols == 0 {
		cfg.Limits.MaxCols = def.Limits.MaxCols
	}
	if cfg.Limits.MaxSolvableTries == 0 {
		cfg.Limits.MaxSolvableTries = def.Limits.MaxSolvableTries
	}
	if cfg.Daily.Salt == "" {
		cfg.Daily.Salt = def.Daily.Salt
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = def.Auth.JWTSecret
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = def.Auth.CookieName
	}
	if cfg.Auth.ExpiresDays == 0 {
		cfg.Auth.ExpiresDays = def.Auth.ExpiresDays
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = def.Database.Path
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
}

func applyEnv(cfg *Config) error {
	setStr(&cfg.Server.Port, "PORT")
	setStr(&cfg.Server.ClientOrigin, "CLIENT_ORIGIN")
	setStr(&cfg.Database.Path, "DB_PATH")
	setStr(&cfg.Daily.Salt, "DAILY_SALT")
	setStr(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setStr(&cfg.Auth.CookieName, "COOKIE_NAME")
	setStr(&cfg.LogLevel, "LOG_LEVEL")

	if err := setInt(&cfg.Board.Rows, "BOARD_ROWS"); err != nil {
		return err
	}
	if err := setInt(&cfg.Board.Cols, "BOARD_COLS"); err != nil {
		return err
	}
	if err := setInt(&cfg.Auth.ExpiresDays, "JWT_EXPIRES_DAYS"); err != nil {
		return err
	}
	if v := os.Getenv("BOARD_CHANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BOARD_CHANCE: %w", err)
		}
		cfg.Board.ChanceLightStartsOn = f
	}
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
