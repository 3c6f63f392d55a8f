package store

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/jacentio/strata/store"

// Config holds configuration for RowStore and ColumnStore.
type Config struct {
	// DefaultLimit is the page size of queries that set no limit.
	// Default: 25
	DefaultLimit int

	// ScanPageSize bounds the rows requested per index-scan call. The query
	// executor keeps paging until the scan is exhausted, so this trades
	// round trips for response size and does not change results. Values
	// of 1 are raised to 2 so a page always advances past a restart row.
	// Default: 0 (one unbounded call)
	ScanPageSize int

	// Logger receives debug output for every store call.
	// Default: zap.NewNop()
	Logger *zap.Logger

	// Metrics records call counts and latencies. Nil disables metrics.
	Metrics *Metrics

	// Tracer starts one span per operation.
	// Default: the global otel tracer provider.
	Tracer trace.Tracer
}

// DefaultConfig returns a config with no metrics and a no-op logger.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: 25,
		Logger:       zap.NewNop(),
		Tracer:       otel.Tracer(tracerName),
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.DefaultLimit < 1 {
		c.DefaultLimit = 25
	}
	switch {
	case c.ScanPageSize < 0:
		c.ScanPageSize = 0
	case c.ScanPageSize == 1:
		c.ScanPageSize = 2
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Tracer == nil {
		c.Tracer = otel.Tracer(tracerName)
	}
}
