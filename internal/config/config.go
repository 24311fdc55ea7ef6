// Package config holds the server settings, read from flags, the environment
// and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/DoyleJ11/housie-backend/internal/engine"
	"github.com/DoyleJ11/housie-backend/internal/prize"
	"github.com/DoyleJ11/housie-backend/internal/ticket"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Addr            string        `kong:"default=':8080',env='HOUSIE_ADDR',help='Server address'"`
	HostSecret      string        `kong:"env='HOUSIE_HOST_SECRET',help='Shared secret that grants the host role (empty disables hosting)'"`
	DefaultRoom     string        `kong:"default='MAIN',env='HOUSIE_DEFAULT_ROOM',help='Room created at startup'"`
	PoolSize        int           `kong:"default='600',env='HOUSIE_POOL_SIZE',help='Number of tickets in the pool'"`
	MaxTickets      int           `kong:"default='1',env='HOUSIE_MAX_TICKETS',help='Tickets a player may hold'"`
	ClaimMode       string        `kong:"default='auto',enum='auto,manual',env='HOUSIE_CLAIM_MODE',help='auto: server detects wins; manual: players claim'"`
	Prizes          []string      `kong:"env='HOUSIE_PRIZES',sep=',',help='Ordered prize IDs'"`
	FreezeJoins     bool          `kong:"env='HOUSIE_FREEZE_JOINS',help='Reject new players once the game is running'"`
	DatabaseURL     string        `kong:"env='HOUSIE_DATABASE_URL',help='Postgres DSN for the results archive (optional)'"`
	AllowedOrigins  []string      `kong:"env='HOUSIE_ALLOWED_ORIGINS',sep=',',help='Extra websocket origin patterns'"`
	ShutdownTimeout time.Duration `kong:"default='10s',env='HOUSIE_SHUTDOWN_TIMEOUT',help='Graceful shutdown limit'"`
	Debug           bool          `kong:"env='HOUSIE_DEBUG',help='Enable debug logging'"`
	Pretty          bool          `kong:"env='HOUSIE_PRETTY_LOGS',help='Human readable console logs'"`
}

// LoadDotEnv reads the given files into the environment. Missing files are
// ignored so production can rely on the real environment.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Parse reads args and the environment into a Config.
func Parse(args []string, opts ...kong.Option) (Config, error) {
	var cfg Config
	opts = append([]kong.Option{
		kong.Name("housie-server"),
		kong.Description("Real-time housie game server"),
	}, opts...)
	parser, err := kong.New(&cfg, opts...)
	if err != nil {
		return Config{}, err
	}
	if _, err := parser.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr is required", ErrInvalid)
	}
	if c.DefaultRoom == "" {
		return fmt.Errorf("%w: default room is required", ErrInvalid)
	}
	if c.PoolSize < 1 || c.PoolSize > ticket.MaxSerial {
		return fmt.Errorf("%w: pool size %d", ErrInvalid, c.PoolSize)
	}
	if c.MaxTickets < 1 || c.MaxTickets > c.PoolSize {
		return fmt.Errorf("%w: max tickets %d", ErrInvalid, c.MaxTickets)
	}
	if _, err := prize.Resolve(c.Prizes); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func (c Config) Rules() engine.Rules {
	return engine.Rules{
		PoolSize:               c.PoolSize,
		MaxTicketsPerPlayer:    c.MaxTickets,
		FreezeJoinsWhenRunning: c.FreezeJoins,
		ClaimMode:              engine.ClaimMode(c.ClaimMode),
		Prizes:                 c.Prizes,
	}
}
