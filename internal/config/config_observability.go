package config

import "time"

// LoggingConfig controls structured log output (ambient stack, slog).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ObservabilityConfig configures tracing and other observability features.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
}

// TracingConfig controls OpenTelemetry tracing of agent runs and tool calls.
type TracingConfig struct {
	Enabled        bool              `yaml:"enabled"`
	Endpoint       string            `yaml:"endpoint"`
	ServiceName    string            `yaml:"service_name"`
	ServiceVersion string            `yaml:"service_version"`
	Environment    string            `yaml:"environment"`
	SamplingRate   float64           `yaml:"sampling_rate"`
	Insecure       bool              `yaml:"insecure"`
	Attributes     map[string]string `yaml:"attributes"`
}

// ArtifactConfig configures artifact storage and retention (spec §3
// ResultContent image/file artifacts produced by tool execution).
type ArtifactConfig struct {
	// Backend specifies storage backend: "local", "s3", or "minio".
	Backend string `yaml:"backend"`

	// LocalPath is the directory for local storage.
	LocalPath string `yaml:"local_path"`

	// MetadataPath is the file path for artifact metadata persistence.
	MetadataPath string `yaml:"metadata_path"`

	// S3Bucket is the bucket name for S3/MinIO storage.
	S3Bucket string `yaml:"s3_bucket"`

	// S3Endpoint is the endpoint URL for MinIO or S3-compatible storage.
	S3Endpoint string `yaml:"s3_endpoint"`

	// S3Region is the AWS region for S3.
	S3Region string `yaml:"s3_region"`

	// S3Prefix is an optional path prefix for all S3 objects.
	S3Prefix string `yaml:"s3_prefix"`

	// TTLs configures retention period by artifact type.
	TTLs map[string]time.Duration `yaml:"ttls"`

	// PruneInterval is how often to cleanup expired artifacts.
	PruneInterval time.Duration `yaml:"prune_interval"`

	// MaxStorageSize is the total quota in bytes (0 = unlimited).
	MaxStorageSize int64 `yaml:"max_storage_size"`

	// Redaction configures rules for sensitive artifacts.
	Redaction ArtifactRedactionConfig `yaml:"redaction"`
}

// ArtifactRedactionConfig controls artifact redaction behavior.
type ArtifactRedactionConfig struct {
	Enabled          bool     `yaml:"enabled"`
	Types            []string `yaml:"types"`
	MimeTypes        []string `yaml:"mime_types"`
	FilenamePatterns []string `yaml:"filename_patterns"`
}
