package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/extdeb/extdeb/internal/branding"
	"github.com/spf13/viper"
)

const (
	fileName = "config"
	fileType = "yaml"
)

// Configuration keys.
const (
	KeyExtDir       = "ext_dir"
	KeyFlavor       = "flavor"
	KeyExtOptions   = "ext_options"
	KeyDistro       = "distro"
	KeyRelease      = "release"
	KeyBuildTimeout = "build_timeout"
	KeyAssumeYes    = "assume_yes"
)

// Dir returns the path to the config directory (~/.extdeb/).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", branding.HomeDir())
	}
	return filepath.Join(home, branding.HomeDir())
}

// FilePath returns the full path to the config file (~/.extdeb/config.yaml).
func FilePath() string {
	return filepath.Join(Dir(), fileName+"."+fileType)
}

// EnsureDir creates the config directory if it does not exist.
func EnsureDir() error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return nil
}

// Load initializes Viper to read from the config file and environment. A
// missing config file is not an error; an unreadable or malformed one is.
func Load() error {
	viper.SetConfigFile(FilePath())
	viper.SetConfigType(fileType)
	viper.SetEnvPrefix(branding.EnvPrefix())
	viper.AutomaticEnv()

	viper.SetDefault(KeyExtDir, filepath.Join(Dir(), "ext"))
	viper.SetDefault(KeyFlavor, "php")
	viper.SetDefault(KeyBuildTimeout, time.Duration(0))
	viper.SetDefault(KeyAssumeYes, false)

	err := viper.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err == nil || errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("reading config file %s: %w", FilePath(), err)
}

// Get returns a config value by key. Returns empty string if not set.
func Get(key string) string {
	return viper.GetString(key)
}

// Set writes a config key-value pair and saves the config file.
func Set(key, value string) error {
	if err := EnsureDir(); err != nil {
		return err
	}

	viper.Set(key, value)

	configFile := FilePath()

	// Create the file if it doesn't exist.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("creating config file %s: %w", configFile, err)
		}
		f.Close()
	}

	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Keys returns all known keys in sorted order.
func Keys() []string {
	keys := viper.AllKeys()
	sort.Strings(keys)
	return keys
}

// ExtDir returns the managed extension directory.
func ExtDir() string {
	return viper.GetString(KeyExtDir)
}

// Flavor returns the runtime flavor ("php" or "hhvm").
func Flavor() string {
	return viper.GetString(KeyFlavor)
}

// ExtOptions returns the configure/cmake flags configured for a package,
// as a single shell-quoted string.
func ExtOptions(pkg string) string {
	return viper.GetStringMapString(KeyExtOptions)[pkg]
}

// BuildTimeout returns the timeout applied to each build. Zero means none.
func BuildTimeout() time.Duration {
	return viper.GetDuration(KeyBuildTimeout)
}

// DistroOverride returns the distro and release configured to bypass
// detection. Either may be empty.
func DistroOverride() (distro, release string) {
	return viper.GetString(KeyDistro), viper.GetString(KeyRelease)
}

// AssumeYes reports whether prompts should be answered with yes.
func AssumeYes() bool {
	return viper.GetBool(KeyAssumeYes)
}
