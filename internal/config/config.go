package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port             string
	DBDSN            string
	LogFile          string
	SyncInterval     time.Duration
	SyncStartupDelay time.Duration
	SeedDemo         bool
	StartOnline      bool
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "quickshop.db" // sqlite file in project root
	}
	logFile := os.Getenv("LOG_FILE")
	if logFile == "" {
		logFile = "./quickshop.log"
	}
	interval := durationEnv("SYNC_INTERVAL", 30*time.Second)
	// Give the app a few seconds to settle before the first sync pass.
	delay := durationEnv("SYNC_STARTUP_DELAY", 3*time.Second)
	seed := boolEnv("SEED_DEMO", false)
	online := boolEnv("START_ONLINE", true)

	cfg := Config{
		Port:             port,
		DBDSN:            dsn,
		LogFile:          logFile,
		SyncInterval:     interval,
		SyncStartupDelay: delay,
		SeedDemo:         seed,
		StartOnline:      online,
	}
	log.Printf("[config] PORT=%s DB_DSN=%s LOG_FILE=%s SYNC_INTERVAL=%s SEED_DEMO=%v",
		cfg.Port, cfg.DBDSN, cfg.LogFile, cfg.SyncInterval, cfg.SeedDemo)
	return cfg
}

func durationEnv(name string, def time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("[config] invalid %s=%q, using %s", name, os.Getenv(name), def)
	}
	return def
}

func boolEnv(name string, def bool) bool {
	if v := os.Getenv(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
