// Package config loads the server options from command-line flags,
// environment variables, an optional .env file and an optional JSON config
// file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Options holds the configuration values for the application.
type Options struct {
	// Address is the server's listening address (ip:port).
	Address string

	// DatabaseDSN is the PostgreSQL connection string. Empty selects the
	// in-memory store.
	DatabaseDSN string

	// Config is the path to the JSON config file.
	Config string

	LogLevel string

	// SessionTTL is how long an issued token stays valid.
	SessionTTL time.Duration

	// CleanupInterval is the period of the stale-session cleaner.
	CleanupInterval time.Duration

	// SessionRetention is how long ended sessions are kept before cleanup.
	SessionRetention time.Duration

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string
	TLSKey  string
}

// TLSEnabled reports whether both TLS files are configured.
func (o *Options) TLSEnabled() bool {
	return o.TLSCert != "" && o.TLSKey != ""
}

var envKeys = map[string]string{
	"address":           "SERVER_ADDRESS",
	"database_dsn":      "DATABASE_DSN",
	"config":            "CONFIG",
	"log_level":         "LOG_LEVEL",
	"session_ttl":       "SESSION_TTL",
	"cleanup_interval":  "CLEANUP_INTERVAL",
	"session_retention": "SESSION_RETENTION",
	"tls_cert":          "TLS_CERT",
	"tls_key":           "TLS_KEY",
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("accountd", pflag.ContinueOnError)
	flags.StringP("address", "a", "localhost:8080", "run on ip:port server")
	flags.StringP("database-dsn", "d", "", "postgres DSN; empty uses the in-memory store")
	flags.StringP("config", "c", "config.json", "path to config file")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.Duration("session-ttl", 24*time.Hour, "lifetime of issued tokens")
	flags.Duration("cleanup-interval", time.Hour, "stale session cleanup period")
	flags.Duration("session-retention", 30*24*time.Hour, "how long ended sessions are kept")
	flags.String("tls-cert", "", "TLS certificate file")
	flags.String("tls-key", "", "TLS private key file")
	return flags
}

// Load parses args (without the program name) together with the
// environment and config files.
func Load(args []string) (*Options, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	flagNames := map[string]string{
		"address":           "address",
		"database_dsn":      "database-dsn",
		"config":            "config",
		"log_level":         "log-level",
		"session_ttl":       "session-ttl",
		"cleanup_interval":  "cleanup-interval",
		"session_retention": "session-retention",
		"tls_cert":          "tls-cert",
		"tls_key":           "tls-key",
	}
	for key, name := range flagNames {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, err
		}
		if err := v.BindEnv(key, envKeys[key]); err != nil {
			return nil, err
		}
	}

	if path := v.GetString("config"); path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	opts := &Options{
		Address:          v.GetString("address"),
		DatabaseDSN:      v.GetString("database_dsn"),
		Config:           v.GetString("config"),
		LogLevel:         v.GetString("log_level"),
		SessionTTL:       v.GetDuration("session_ttl"),
		CleanupInterval:  v.GetDuration("cleanup_interval"),
		SessionRetention: v.GetDuration("session_retention"),
		TLSCert:          v.GetString("tls_cert"),
		TLSKey:           v.GetString("tls_key"),
	}
	if opts.SessionTTL <= 0 {
		return nil, fmt.Errorf("session_ttl must be positive, got %s", opts.SessionTTL)
	}
	if opts.CleanupInterval <= 0 {
		return nil, fmt.Errorf("cleanup_interval must be positive, got %s", opts.CleanupInterval)
	}
	if (opts.TLSCert == "") != (opts.TLSKey == "") {
		return nil, errors.New("tls_cert and tls_key must be set together")
	}
	return opts, nil
}

// Parse loads the options from os.Args and the environment, exiting the
// process on error.
func Parse() *Options {
	opts, err := Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	return opts
}
