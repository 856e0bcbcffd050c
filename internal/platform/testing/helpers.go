package testing

import (
	"testing"
	"time"

	"medboard-server-go/internal/platform/config"
	"medboard-server-go/internal/platform/logging"
)

func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			IP:        "127.0.0.1",
			Port:      8080,
			JWTSecret: "test-secret",
		},
		Log: config.LogConfig{
			Level: "DEBUG",
			Dir:   t.TempDir(),
			File:  "test.log",
		},
		Session: config.SessionConfig{
			TimeoutMinutes:      30,
			MaxConcurrent:       1,
			CleanupInterval:     time.Minute,
			CreationGrace:       10 * time.Second,
			InactivityThreshold: 25 * time.Minute,
			ActivityMinInterval: time.Minute,
			CacheSecret:         "test-cache-secret",
		},
		Lockout: config.LockoutConfig{
			MaxAttempts:  5,
			BaseDuration: 15 * time.Minute,
			MaxDuration:  24 * time.Hour,
			CleanupAge:   7 * 24 * time.Hour,
		},
		Puzzle: config.PuzzleConfig{
			GridSize:    3,
			IssueWindow: 5 * time.Minute,
		},
		Store: config.StoreConfig{
			Driver: "memory",
		},
	}

	return cfg
}

func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})

	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { logger.Close() })

	return logger
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if expected != actual {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}
