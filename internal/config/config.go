// Package config loads Settings from a TOML file layered with CID_-prefixed
// environment overrides, the way github.com/spf13/viper pairs with cobra
// across the Go CLI ecosystem.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"

	"github.com/dupgit/cid/internal/site"
)

// DefaultConfigPath matches the original tool's default configuration
// location.
const DefaultConfigPath = "/etc/cid.toml"

// DefaultConcurrency is used when neither the CLI flag, the environment,
// nor the configuration file set concurrent_downloads.
const DefaultConcurrency = 4

// SiteConfig is the TOML/viper-deserialized shape of one configured site,
// before its regexes are compiled into a site.Site.
type SiteConfig struct {
	Name             string   `mapstructure:"name"`
	BaseURL          string   `mapstructure:"base_url"`
	VersionList      []string `mapstructure:"version_list"`
	AfterVersionURL  []string `mapstructure:"after_version_url"`
	ImageNameFilter  string   `mapstructure:"image_name_filter"`
	ImageNameCleanse []string `mapstructure:"image_name_cleanse"`
	Destination      string   `mapstructure:"destination"`
	Normalize        bool     `mapstructure:"normalize"`
}

// Settings is the fully loaded, not-yet-compiled configuration, combining
// the TOML file, CID_* environment overrides, and CLI flag overrides in
// that increasing order of precedence.
type Settings struct {
	DBPath              string       `mapstructure:"db_path"`
	ConcurrentDownloads int          `mapstructure:"concurrent_downloads"`
	VerifySkipped       bool         `mapstructure:"verify_skipped"`
	Sites               []SiteConfig `mapstructure:"sites"`
}

// Overrides carries the CLI flag values that win over the file and
// environment layers, matching the original's "parse flags, then load and
// merge config" precedence (flags always win).
type Overrides struct {
	ConfigPath          string
	DBPath              string
	ConcurrentDownloads int
	VerifySkipped       bool
}

// Load reads the TOML file at overrides.ConfigPath (falling back silently
// to an empty configuration if the file does not exist, matching the
// original's `required(false)` file source), layers CID_*-prefixed
// environment variables on top, and finally applies overrides. A missing
// file is not an error; a malformed one is.
func Load(overrides Overrides) (*Settings, error) {
	configPath := overrides.ConfigPath
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	expanded := os.ExpandEnv(configPath)

	v := viper.New()
	v.SetConfigFile(expanded)
	v.SetConfigType("toml")
	v.SetEnvPrefix("CID")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("concurrent_downloads", DefaultConcurrency)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config %q: %w", expanded, err)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("parsing config %q: %w", expanded, err)
	}

	applyOverrides(&settings, overrides)

	if settings.DBPath == "" {
		dbPath, err := defaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("determining default database path: %w", err)
		}

		settings.DBPath = dbPath
	}

	return &settings, nil
}

func applyOverrides(settings *Settings, overrides Overrides) {
	if overrides.DBPath != "" {
		settings.DBPath = overrides.DBPath
	}

	if overrides.ConcurrentDownloads > 0 {
		settings.ConcurrentDownloads = overrides.ConcurrentDownloads
	}

	if overrides.VerifySkipped {
		settings.VerifySkipped = true
	}
}

func defaultDBPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolving user cache dir: %w", err)
	}

	return filepath.Join(cacheDir, "cid", "cid.sqlite"), nil
}

// Sites compiles every SiteConfig's regexes into a site.Site, returning an
// error that names the offending site on the first invalid regex or
// failed Validate.
func (s *Settings) Sites() ([]site.Site, error) {
	sites := make([]site.Site, 0, len(s.Sites))

	for _, sc := range s.Sites {
		filter, err := regexp.Compile(sc.ImageNameFilter)
		if err != nil {
			return nil, fmt.Errorf("site %q: compiling image_name_filter %q: %w", sc.Name, sc.ImageNameFilter, err)
		}

		cleanse := make([]*regexp.Regexp, 0, len(sc.ImageNameCleanse))

		for _, pattern := range sc.ImageNameCleanse {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("site %q: compiling image_name_cleanse %q: %w", sc.Name, pattern, err)
			}

			cleanse = append(cleanse, re)
		}

		built := site.Site{
			Name:             sc.Name,
			BaseURL:          sc.BaseURL,
			VersionList:      sc.VersionList,
			AfterVersionURL:  sc.AfterVersionURL,
			ImageNameFilter:  filter,
			ImageNameCleanse: cleanse,
			Destination:      sc.Destination,
			Normalize:        sc.Normalize,
		}

		if err := built.Validate(); err != nil {
			return nil, err
		}

		sites = append(sites, built)
	}

	return sites, nil
}
