package config

import "time"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Session SessionConfig `yaml:"session"`
	Lockout LockoutConfig `yaml:"lockout"`
	Puzzle  PuzzleConfig  `yaml:"puzzle"`
	Store   StoreConfig   `yaml:"store"`
}

type ServerConfig struct {
	IP          string   `yaml:"ip"`
	Port        int      `yaml:"port"`
	JWTSecret   string   `yaml:"jwt_secret"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// SessionConfig tunes the session lifecycle services.
type SessionConfig struct {
	TimeoutMinutes      int           `yaml:"timeout_minutes"`
	MaxConcurrent       int           `yaml:"max_concurrent"`
	CleanupInterval     time.Duration `yaml:"cleanup_interval"`
	CreationGrace       time.Duration `yaml:"creation_grace"`
	InactivityThreshold time.Duration `yaml:"inactivity_threshold"`
	ActivityMinInterval time.Duration `yaml:"activity_min_interval"`
	CacheSecret         string        `yaml:"cache_secret"`
}

// LockoutConfig tunes the failed-login tracker.
type LockoutConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	BaseDuration time.Duration `yaml:"base_duration"`
	MaxDuration  time.Duration `yaml:"max_duration"`
	CleanupAge   time.Duration `yaml:"cleanup_age"`
}

// PuzzleConfig tunes the tile-puzzle challenge engine.
type PuzzleConfig struct {
	GridSize    int           `yaml:"grid_size"`
	IssueWindow time.Duration `yaml:"issue_window"`
}

// StoreConfig selects the persistence backend shared by the session and
// lockout stores.
type StoreConfig struct {
	Driver string      `yaml:"driver"`
	Redis  RedisStore  `yaml:"redis,omitempty"`
	SQLite SQLiteStore `yaml:"sqlite,omitempty"`
	Memory MemoryStore `yaml:"memory,omitempty"`
}

type RedisStore struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type SQLiteStore struct {
	DSN string `yaml:"dsn"`
}

type MemoryStore struct {
	GCInterval time.Duration `yaml:"gc_interval"`
}
