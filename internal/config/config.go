// Package config wraps Viper behind the small read-only surface the
// daemons actually use, and owns the defaults for every key.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is a read-only view over a loaded Viper tree.
type Config struct {
	v *viper.Viper
}

// New wraps an existing Viper instance.
func New(v *viper.Viper) *Config {
	return &Config{v: v}
}

// Load reads the optional YAML config file and UPNPD_* environment
// overrides, applying defaults for every key. An empty path means
// defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("UPNPD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return New(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("ssdp.group", "239.255.255.250")
	v.SetDefault("ssdp.port", 1900)
	v.SetDefault("ssdp.ttl", 4)
	v.SetDefault("ssdp.notify_interval", "60s")
	v.SetDefault("ssdp.max_age", 120)
	v.SetDefault("ssdp.answer_all", false)

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 0)

	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("registry.path", "")
}

// defaultCacheDir is ~/.UPnP, falling back to the working directory
// when the home directory cannot be determined.
func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".UPnP"
	}
	return filepath.Join(home, ".UPnP")
}

func (c *Config) GetString(key string) string          { return c.v.GetString(key) }
func (c *Config) GetInt(key string) int                { return c.v.GetInt(key) }
func (c *Config) GetBool(key string) bool              { return c.v.GetBool(key) }
func (c *Config) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *Config) IsSet(key string) bool                { return c.v.IsSet(key) }

// Sub returns the subtree under key, or nil when the key is absent.
func (c *Config) Sub(key string) *Config {
	sub := c.v.Sub(key)
	if sub == nil {
		return nil
	}
	return New(sub)
}
