// Package config loads service configuration from environment variables,
// with an optional .env file for local development.
package config

import (
    "os"
    "strings"

    "github.com/joho/godotenv"
)

// Config holds everything the binary needs at startup.
type Config struct {
    // DatabaseURL selects the postgres store; empty means in-memory.
    DatabaseURL string
    ListenAddr  string
    LogLevel    string
    LogFormat   string
    // DevSeed inserts a demo user plus a small chart of accounts on boot.
    DevSeed bool
    // RecurringCronAt is the local HH:MM:SS time of the daily recurring
    // generation pass; empty disables the daemon.
    RecurringCronAt string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real env vars win over it.
func Load() Config {
    _ = godotenv.Load()
    return Config{
        DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
        ListenAddr:      getEnvOrDefault("LISTEN_ADDR", ":8080"),
        LogLevel:        os.Getenv("LOG_LEVEL"),
        LogFormat:       strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))),
        DevSeed:         boolEnv("DEV_SEED"),
        RecurringCronAt: strings.TrimSpace(os.Getenv("RECURRING_CRON_AT")),
    }
}

func getEnvOrDefault(key, def string) string {
    if v := strings.TrimSpace(os.Getenv(key)); v != "" {
        return v
    }
    return def
}

func boolEnv(key string) bool {
    switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
    case "1", "true", "yes":
        return true
    }
    return false
}
