package dynamo

import (
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix is the environment prefix read by LoadConfig, as in
// STRATA_DYNAMO_TABLE_PREFIX.
const EnvPrefix = "STRATA_DYNAMO"

// maxBatchGet is the DynamoDB limit on keys per BatchGetItem call.
const maxBatchGet = 100

// Config holds configuration for Client.
type Config struct {
	// TablePrefix is prepended to each column family to name its table.
	TablePrefix string

	// Region and Endpoint are used by NewFromAWS only. An empty Endpoint
	// uses the regional AWS endpoint.
	Region   string
	Endpoint string

	// ConsistentRead requests strongly consistent reads.
	// Default: true
	ConsistentRead bool

	// ScanSegments is the number of parallel scan segments used when an
	// index scan is unbounded.
	// Default: 1
	ScanSegments int

	// WriteWorkers is the number of concurrent UpdateItem workers per
	// BatchMutate.
	// Default: 4
	WriteWorkers int

	// BatchGetSize is the number of keys per BatchGetItem call (max 100).
	// Default: 100
	BatchGetSize int

	// Logger receives debug output per DynamoDB call.
	// Default: zap.NewNop()
	Logger *zap.Logger
}

// DefaultConfig returns a config with default values.
func DefaultConfig() Config {
	return Config{
		ConsistentRead: true,
		ScanSegments:   1,
		WriteWorkers:   4,
		BatchGetSize:   maxBatchGet,
		Logger:         zap.NewNop(),
	}
}

// LoadConfig reads a Config from v, falling back to STRATA_DYNAMO_*
// environment variables and then to DefaultConfig.
func LoadConfig(v *viper.Viper) Config {
	if v == nil {
		v = viper.New()
	}
	def := DefaultConfig()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("table_prefix", def.TablePrefix)
	v.SetDefault("region", def.Region)
	v.SetDefault("endpoint", def.Endpoint)
	v.SetDefault("consistent_read", def.ConsistentRead)
	v.SetDefault("scan_segments", def.ScanSegments)
	v.SetDefault("write_workers", def.WriteWorkers)
	v.SetDefault("batch_get_size", def.BatchGetSize)

	cfg := Config{
		TablePrefix:    v.GetString("table_prefix"),
		Region:         v.GetString("region"),
		Endpoint:       v.GetString("endpoint"),
		ConsistentRead: v.GetBool("consistent_read"),
		ScanSegments:   v.GetInt("scan_segments"),
		WriteWorkers:   v.GetInt("write_workers"),
		BatchGetSize:   v.GetInt("batch_get_size"),
	}
	cfg.validate()
	return cfg
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.ScanSegments < 1 {
		c.ScanSegments = 1
	}
	if c.WriteWorkers < 1 {
		c.WriteWorkers = 1
	}
	if c.BatchGetSize < 1 || c.BatchGetSize > maxBatchGet {
		c.BatchGetSize = maxBatchGet
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}
