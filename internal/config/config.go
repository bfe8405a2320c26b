// Package config holds runtime settings for the diary crypto CLI.
package config

// Config holds runtime settings.
//
// Fields:
//   - DatabaseDSN: sqlite file path (or postgres DSN when UsePostgres is set).
//   - ExportDir: directory export files are written to.
//   - RecoveryPeriodDays: how long breakup archives stay recoverable.
//   - S3*: object storage settings for archive payload offload. Offload is
//     enabled when S3Bucket is non-empty.
type Config struct {
	DatabaseDSN        string
	UsePostgres        bool
	ExportDir          string
	RecoveryPeriodDays int

	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3RootUser     string
	S3RootPassword string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.DatabaseDSN = "diary.db"
	c.UsePostgres = false
	c.ExportDir = "."
	c.RecoveryPeriodDays = 30

	c.S3Bucket = ""
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.S3RootUser = ""
	c.S3RootPassword = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
