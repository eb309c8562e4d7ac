package node

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

// Config carries the runtime tunables. Retry cadence and timeouts are
// deployment parameters, not protocol constants, so they all live here.
type Config struct {
	// GossipInterval is the period between gossip rounds.
	GossipInterval time.Duration `mapstructure:"gossip-interval"`

	// RPCTimeout bounds how long a correlated send waits for its reply.
	RPCTimeout time.Duration `mapstructure:"rpc-timeout"`

	// MetricsAddr, when non-empty, enables a /metrics HTTP listener.
	MetricsAddr string `mapstructure:"metrics-addr"`

	LogLevel string `mapstructure:"log-level"`

	Logger *zap.Logger `mapstructure:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		GossipInterval: 250 * time.Millisecond,
		RPCTimeout:     1 * time.Second,
		LogLevel:       "info",
		Logger:         zap.NewNop(),
	}
}

// BuildLogger constructs a structured logger writing to stderr only;
// stdout belongs to the harness.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}

// TestConfig shortens the timers so tests converge quickly.
func TestConfig(t *testing.T) *Config {
	cfg := DefaultConfig()
	cfg.GossipInterval = 10 * time.Millisecond
	cfg.RPCTimeout = 100 * time.Millisecond
	cfg.Logger = zaptest.NewLogger(t)
	return cfg
}
