package config

import (
	"time"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Storage  StorageConfig  `toml:"storage" yaml:"storage"`
	Snapshot SnapshotConfig `toml:"snapshot" yaml:"snapshot"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
}

// ServerConfig configures the REST listener.
type ServerConfig struct {
	Addr            string   `toml:"addr" yaml:"addr" validate:"required,hostname_port"`
	ReadTimeout     Duration `toml:"readTimeout" yaml:"readTimeout" validate:"gte=0"`
	WriteTimeout    Duration `toml:"writeTimeout" yaml:"writeTimeout" validate:"gte=0"`
	ShutdownTimeout Duration `toml:"shutdownTimeout" yaml:"shutdownTimeout" validate:"gt=0"`
	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64 `toml:"maxBodyBytes" yaml:"maxBodyBytes" validate:"gt=0"`
	// Release runs gin in release mode.
	Release bool `toml:"release" yaml:"release"`
}

// StorageConfig selects and configures the document store.
type StorageConfig struct {
	Driver     string   `toml:"driver" yaml:"driver" validate:"oneof=memory badger"`
	Path       string   `toml:"path" yaml:"path" validate:"required_if=Driver badger"`
	SyncWrites bool     `toml:"syncWrites" yaml:"syncWrites"`
	GCInterval Duration `toml:"gcInterval" yaml:"gcInterval" validate:"gte=0"`
}

// SnapshotConfig configures the snapshot engine.
type SnapshotConfig struct {
	CacheSize int `toml:"cacheSize" yaml:"cacheSize" validate:"gte=0"`
	// Interval persists a snapshot every Interval versions; 0 disables.
	Interval int `toml:"interval" yaml:"interval" validate:"gte=0"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `toml:"format" yaml:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
			MaxBodyBytes:    8 << 20,
		},
		Storage: StorageConfig{
			Driver:     "memory",
			SyncWrites: true,
			GCInterval: Duration(5 * time.Minute),
		},
		Snapshot: SnapshotConfig{
			CacheSize: 256,
			Interval:  100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Duration is a time.Duration read from strings like "15s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
