package config

import "time"

// DefaultConfig returns the baseline configuration used when no file or
// environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:          "0.0.0.0",
			Port:        8090,
			JWTSecret:   "change_me",
			CORSOrigins: []string{"*"},
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Session: SessionConfig{
			TimeoutMinutes:      30,
			MaxConcurrent:       1,
			CleanupInterval:     10 * time.Minute,
			CreationGrace:       10 * time.Second,
			InactivityThreshold: 30 * time.Minute,
			ActivityMinInterval: 30 * time.Second,
			CacheSecret:         "medboard_local_cache",
		},
		Lockout: LockoutConfig{
			MaxAttempts:  5,
			BaseDuration: 15 * time.Minute,
			MaxDuration:  24 * time.Hour,
			CleanupAge:   7 * 24 * time.Hour,
		},
		Puzzle: PuzzleConfig{
			GridSize:    3,
			IssueWindow: 5 * time.Minute,
		},
		Store: StoreConfig{
			Driver: "memory",
			Memory: MemoryStore{GCInterval: 5 * time.Minute},
			SQLite: SQLiteStore{DSN: "data/medboard.db"},
		},
	}
}

// applyDefaults fills zero values on a loaded config so partial yaml files
// remain valid.
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.IP == "" {
		cfg.Server.IP = def.Server.IP
	}
	if cfg.Server.JWTSecret == "" {
		cfg.Server.JWTSecret = def.Server.JWTSecret
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = def.Server.CORSOrigins
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Dir == "" {
		cfg.Log.Dir = def.Log.Dir
	}
	if cfg.Log.File == "" {
		cfg.Log.File = def.Log.File
	}
	if cfg.Session.TimeoutMinutes <= 0 {
		cfg.Session.TimeoutMinutes = def.Session.TimeoutMinutes
	}
	if cfg.Session.MaxConcurrent <= 0 {
		cfg.Session.MaxConcurrent = def.Session.MaxConcurrent
	}
	if cfg.Session.CleanupInterval <= 0 {
		cfg.Session.CleanupInterval = def.Session.CleanupInterval
	}
	if cfg.Session.CreationGrace <= 0 {
		cfg.Session.CreationGrace = def.Session.CreationGrace
	}
	if cfg.Session.InactivityThreshold <= 0 {
		cfg.Session.InactivityThreshold = def.Session.InactivityThreshold
	}
	if cfg.Session.ActivityMinInterval <= 0 {
		cfg.Session.ActivityMinInterval = def.Session.ActivityMinInterval
	}
	if cfg.Session.CacheSecret == "" {
		cfg.Session.CacheSecret = def.Session.CacheSecret
	}
	if cfg.Lockout.MaxAttempts <= 0 {
		cfg.Lockout.MaxAttempts = def.Lockout.MaxAttempts
	}
	if cfg.Lockout.BaseDuration <= 0 {
		cfg.Lockout.BaseDuration = def.Lockout.BaseDuration
	}
	if cfg.Lockout.MaxDuration <= 0 {
		cfg.Lockout.MaxDuration = def.Lockout.MaxDuration
	}
	if cfg.Lockout.CleanupAge <= 0 {
		cfg.Lockout.CleanupAge = def.Lockout.CleanupAge
	}
	if cfg.Puzzle.GridSize <= 0 {
		cfg.Puzzle.GridSize = def.Puzzle.GridSize
	}
	if cfg.Puzzle.IssueWindow <= 0 {
		cfg.Puzzle.IssueWindow = def.Puzzle.IssueWindow
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = def.Store.Driver
	}
	if cfg.Store.Memory.GCInterval <= 0 {
		cfg.Store.Memory.GCInterval = def.Store.Memory.GCInterval
	}
	if cfg.Store.SQLite.DSN == "" {
		cfg.Store.SQLite.DSN = def.Store.SQLite.DSN
	}
}
