// Package config reads server settings from flags, the environment and an
// optional .env file. Flags win over the environment.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings.
type Config struct {
	DBPath         string
	Addr           string
	AdminUser      string
	LogPath        string
	RedisURL       string
	TokenTTL       time.Duration
	ReconcileEvery time.Duration
}

const usage = `Usage: izposoja [flags]

Flags:
  -d, -db <path>          SQLite database path (env IZPOSOJA_DB, default: izposoja.sqlite3)
  -a, -addr <host:port>   listen address (env IZPOSOJA_ADDR, default: :8080)
  -u, -user <name>        admin username on first run (env IZPOSOJA_ADMIN, default: admin)
  -l, -log <path>         log file path (env IZPOSOJA_LOG, default: stdout/stderr only)
  -r, -redis <url>        Redis URL for item locks shared between instances (env IZPOSOJA_REDIS)
  -token-ttl <duration>   session lifetime (env IZPOSOJA_TOKEN_TTL, default: 12h)
  -reconcile <duration>   interval of the availability sweep, 0 disables (env IZPOSOJA_RECONCILE, default: 1h)
  -h, -help               show this help and exit
`

// LoadEnvFile loads variables from path into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Parse builds a Config from args, taking defaults from getenv.
// It returns flag.ErrHelp when help was requested.
func Parse(args []string, getenv func(string) string, out io.Writer) (*Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	ttl, err := envDuration(env, "IZPOSOJA_TOKEN_TTL", "12h")
	if err != nil {
		return nil, err
	}
	every, err := envDuration(env, "IZPOSOJA_RECONCILE", "1h")
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	flags := flag.NewFlagSet("izposoja", flag.ContinueOnError)
	flags.SetOutput(out)

	dbPath := env("IZPOSOJA_DB", "izposoja.sqlite3")
	flags.StringVar(&cfg.DBPath, "db", dbPath, "")
	flags.StringVar(&cfg.DBPath, "d", dbPath, "")

	addr := env("IZPOSOJA_ADDR", ":8080")
	flags.StringVar(&cfg.Addr, "addr", addr, "")
	flags.StringVar(&cfg.Addr, "a", addr, "")

	admin := env("IZPOSOJA_ADMIN", "admin")
	flags.StringVar(&cfg.AdminUser, "user", admin, "")
	flags.StringVar(&cfg.AdminUser, "u", admin, "")

	logPath := env("IZPOSOJA_LOG", "")
	flags.StringVar(&cfg.LogPath, "log", logPath, "")
	flags.StringVar(&cfg.LogPath, "l", logPath, "")

	redisURL := env("IZPOSOJA_REDIS", "")
	flags.StringVar(&cfg.RedisURL, "redis", redisURL, "")
	flags.StringVar(&cfg.RedisURL, "r", redisURL, "")

	flags.DurationVar(&cfg.TokenTTL, "token-ttl", ttl, "")
	flags.DurationVar(&cfg.ReconcileEvery, "reconcile", every, "")

	flags.Usage = func() { fmt.Fprint(out, usage) }

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() > 0 {
		flags.Usage()
		return nil, fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("token TTL must be positive")
	}
	if cfg.ReconcileEvery < 0 {
		return nil, fmt.Errorf("reconcile interval must not be negative")
	}
	return cfg, nil
}

func envDuration(env func(string, string) string, key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(env(key, def))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
