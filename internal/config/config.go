// Package config loads lineage settings from defaults, an optional
// lineage.yaml, LINEAGE_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dukerupert/lineage/internal/family"
)

// Config is the effective configuration of a lineage process.
type Config struct {
	Port           int      `mapstructure:"port" json:"port" validate:"min=1,max=65535"`
	DBPath         string   `mapstructure:"db_path" json:"db_path" validate:"required"`
	LogLevel       string   `mapstructure:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	LogFormat      string   `mapstructure:"log_format" json:"log_format" validate:"oneof=text json"`
	BaseURL        string   `mapstructure:"base_url" json:"base_url" validate:"omitempty,url"`
	AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins"`

	Challenge   ChallengeConfig   `mapstructure:"challenge" json:"challenge"`
	Birthdays   BirthdaysConfig   `mapstructure:"birthdays" json:"birthdays"`
	Permissions PermissionsConfig `mapstructure:"permissions" json:"permissions"`
	Push        PushConfig        `mapstructure:"push" json:"push"`
	Session     SessionConfig     `mapstructure:"session" json:"session"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit" json:"rate_limit"`
	Backup      BackupConfig      `mapstructure:"backup" json:"backup"`
}

// ChallengeConfig tunes the identity challenge and the account lockout.
type ChallengeConfig struct {
	Decoys       int           `mapstructure:"decoys" json:"decoys" validate:"min=1,max=20"`
	RootFallback bool          `mapstructure:"root_fallback" json:"root_fallback"`
	RootRoles    []string      `mapstructure:"root_roles" json:"root_roles"`
	MaxAttempts  int           `mapstructure:"max_attempts" json:"max_attempts" validate:"min=1"`
	TTL          time.Duration `mapstructure:"ttl" json:"ttl" validate:"gt=0"`
}

type BirthdaysConfig struct {
	WindowDays int `mapstructure:"window_days" json:"window_days" validate:"min=0,max=366"`
}

type PermissionsConfig struct {
	ParentRoles []string `mapstructure:"parent_roles" json:"parent_roles"`
}

// PushConfig holds the VAPID key pair. Push is disabled unless both keys
// are set.
type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key" json:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key" json:"-"`
	Subscriber      string `mapstructure:"subscriber" json:"subscriber"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl" json:"ttl" validate:"gt=0"`
}

// RateLimitConfig bounds login and challenge attempts per client IP.
type RateLimitConfig struct {
	Attempts int           `mapstructure:"attempts" json:"attempts" validate:"min=1"`
	Window   time.Duration `mapstructure:"window" json:"window" validate:"gt=0"`
}

// BackupConfig points `lineage backup` at an S3-compatible bucket.
type BackupConfig struct {
	Endpoint   string        `mapstructure:"endpoint" json:"endpoint"`
	Bucket     string        `mapstructure:"bucket" json:"bucket"`
	Region     string        `mapstructure:"region" json:"region"`
	Prefix     string        `mapstructure:"prefix" json:"prefix"`
	AccessKey  string        `mapstructure:"access_key" json:"access_key"`
	SecretKey  string        `mapstructure:"secret_key" json:"-"`
	Passphrase string        `mapstructure:"passphrase" json:"-"`
	Retention  time.Duration `mapstructure:"retention" json:"retention" validate:"gt=0"`
}

// Addr is the listen address for Port.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SecureCookies reports whether session cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

// Load resolves the configuration with precedence
// flags > env > config file > defaults.
//
// It returns the config and the path of the file it read, empty when no
// file was found. flags may be nil; only flags the user actually set
// override lower layers.
func Load(explicitPath string, flags *pflag.FlagSet) (*Config, string, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LINEAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := findConfigFile(explicitPath)
	if err != nil {
		return nil, "", err
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, path, fmt.Errorf("reading config file: %w", err)
		}
	}

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, path, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, path, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}
	return &cfg, path, nil
}

// flagKeys maps config keys to the command-line flags that override them.
var flagKeys = map[string]string{
	"port":      "port",
	"db_path":   "db",
	"log_level": "log-level",
	"base_url":  "base-url",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "lineage.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("base_url", "")
	v.SetDefault("allowed_origins", []string{})

	v.SetDefault("challenge.decoys", family.DefaultDecoyCount)
	v.SetDefault("challenge.root_fallback", true)
	v.SetDefault("challenge.root_roles", family.DefaultRootRoles)
	v.SetDefault("challenge.max_attempts", 3)
	v.SetDefault("challenge.ttl", "10m")

	v.SetDefault("birthdays.window_days", family.DefaultBirthdayWindow)
	v.SetDefault("permissions.parent_roles", family.DefaultParentRoles)

	v.SetDefault("push.vapid_public_key", "")
	v.SetDefault("push.vapid_private_key", "")
	v.SetDefault("push.subscriber", "")

	v.SetDefault("session.ttl", "720h")

	v.SetDefault("rate_limit.attempts", 10)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("backup.endpoint", "")
	v.SetDefault("backup.bucket", "")
	v.SetDefault("backup.region", "")
	v.SetDefault("backup.prefix", "")
	v.SetDefault("backup.access_key", "")
	v.SetDefault("backup.secret_key", "")
	v.SetDefault("backup.passphrase", "")
	v.SetDefault("backup.retention", "720h")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges after all layers are merged.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if (c.Push.VAPIDPublicKey == "") != (c.Push.VAPIDPrivateKey == "") {
		return errors.New("invalid config: push.vapid_public_key and push.vapid_private_key must be set together")
	}
	return nil
}

// findConfigFile returns explicitPath after checking it exists. Without one
// it looks for lineage.yaml or lineage.yml in the working directory and
// then in $XDG_CONFIG_HOME/lineage.
func findConfigFile(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	dirs := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(dir, "lineage"))
	}
	for _, dir := range dirs {
		for _, name := range []string{"lineage.yaml", "lineage.yml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}
	return "", nil
}
