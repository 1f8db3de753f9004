package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Log      LogConfig
	UI       UIConfig
	Keys     []KeyOverride
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// LogConfig controls the diagnostic log. An empty path disables logging.
type LogConfig struct {
	Path  string
	Level string
}

// UIConfig holds presentation settings.
type UIConfig struct {
	ShowGloss bool `mapstructure:"show_gloss"`
	TokenGap  int  `mapstructure:"token_gap"`
}

// KeyOverride rebinds the keys of one action within a scope.
type KeyOverride struct {
	Scope  string
	Action string
	Keys   []string
}

// Load reads configuration from file and env. Env var overrides use prefix GLOSSALIGN_.
func Load() (Config, error) {
	v := viper.New()

	home := os.Getenv("HOME")
	v.SetDefault("database.path", filepath.Join(home, ".local", "share", "glossalign", "glossalign.db"))
	v.SetDefault("log.path", filepath.Join(home, ".local", "state", "glossalign", "glossalign.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("ui.show_gloss", true)
	v.SetDefault("ui.token_gap", 1)

	v.SetConfigType("toml")

	cfgPath := os.Getenv("GLOSSALIGN_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "glossalign"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("GLOSSALIGN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// a missing default config file is fine; a broken or explicitly named one is not
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.UI.TokenGap < 0 {
		c.UI.TokenGap = 0
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("GLOSSALIGN_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "glossalign", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.level", cfg.Log.Level)
	v.Set("ui.show_gloss", cfg.UI.ShowGloss)
	v.Set("ui.token_gap", cfg.UI.TokenGap)
	if len(cfg.Keys) > 0 {
		keys := make([]map[string]any, 0, len(cfg.Keys))
		for _, k := range cfg.Keys {
			keys = append(keys, map[string]any{"scope": k.Scope, "action": k.Action, "keys": k.Keys})
		}
		v.Set("keys", keys)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
