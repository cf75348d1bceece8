package config

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults for the host paths the tool works on.
const (
	DefaultVolumeConfig = "/usr/local/etc/update-fstab-uuid.conf"
	DefaultFstabPath    = "/etc/fstab"
	DefaultLockFile     = "/var/run/update-fstab-uuid.lock"
	DefaultJournalPath  = "/var/db/update-fstab-uuid/journal.db"
)

// Config holds all application configuration
type Config struct {
	// Where the volume name comes from when none is given on the command line
	VolumeConfig string `mapstructure:"volume-config"`

	// Mount table
	FstabPath string `mapstructure:"fstab-path"`

	// Serialization of concurrent passes
	LockFile    string        `mapstructure:"lock-file"`
	LockTimeout time.Duration `mapstructure:"lock-timeout"`

	// Run journal; empty disables it
	JournalPath string `mapstructure:"journal-path"`

	// Off-host backup; an empty bucket disables it
	BackupS3Bucket string `mapstructure:"backup-s3-bucket"`
	BackupS3Region string `mapstructure:"backup-s3-region"`
	BackupS3Prefix string `mapstructure:"backup-s3-prefix"`

	// node_exporter textfile; empty disables it
	MetricsTextfile string `mapstructure:"metrics-textfile"`

	// Logging
	LogLevel string `mapstructure:"log-level"`
	LogJSON  bool   `mapstructure:"log-json"`
}

// Load reads configuration from environment, config file, and defaults
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("volume-config", DefaultVolumeConfig)
	viper.SetDefault("fstab-path", DefaultFstabPath)
	viper.SetDefault("lock-file", DefaultLockFile)
	viper.SetDefault("lock-timeout", 10*time.Second)
	viper.SetDefault("journal-path", DefaultJournalPath)
	viper.SetDefault("backup-s3-bucket", "")
	viper.SetDefault("backup-s3-region", "")
	viper.SetDefault("backup-s3-prefix", "fstab-backups")
	viper.SetDefault("metrics-textfile", "")
	viper.SetDefault("log-level", "info")
	viper.SetDefault("log-json", false)

	// Environment variables (UPDATE_FSTAB_UUID_FSTAB_PATH, etc.)
	viper.SetEnvPrefix("UPDATE_FSTAB_UUID")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// Config file (optional)
	viper.SetConfigName("update-fstab-uuid")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/usr/local/etc")
	viper.AddConfigPath("/etc")
	viper.AddConfigPath(".")

	// Read config file (ignore if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into config struct
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.FstabPath == "" {
		return fmt.Errorf("fstab-path cannot be empty")
	}
	if !filepath.IsAbs(c.FstabPath) {
		return fmt.Errorf("fstab-path must be absolute: %s", c.FstabPath)
	}
	if c.LockTimeout < 0 {
		return fmt.Errorf("lock-timeout must be non-negative")
	}
	if c.JournalPath != "" && !filepath.IsAbs(c.JournalPath) {
		return fmt.Errorf("journal-path must be absolute: %s", c.JournalPath)
	}
	return nil
}

// LockPath returns the lock file, defaulting to one next to the mount table.
func (c *Config) LockPath() string {
	if c.LockFile != "" {
		return c.LockFile
	}
	return c.FstabPath + ".lock"
}

// ReadVolumeName returns the first line of path that is neither blank nor
// starts with '#'. Only the line terminator is removed; a name padded with
// spaces is returned as is and rejected later. It returns "" when the file
// is missing or names no volume.
func ReadVolumeName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read volume config %s: %w", path, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, nil
	}
	return "", scanner.Err()
}
