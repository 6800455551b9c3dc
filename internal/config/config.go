package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/snipsearch/internal/blobpath"
)

// Index backends.
const (
	BackendHosted = "hosted"
	BackendLocal  = "local"
)

// Config represents the complete snipsearch configuration.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Index    IndexConfig    `yaml:"index" json:"index"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	Refresh  RefreshConfig  `yaml:"refresh" json:"refresh"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// IndexConfig selects and configures the search-index backend.
type IndexConfig struct {
	// Backend is "hosted" (remote search service) or "local" (bleve on disk).
	Backend string `yaml:"backend" json:"backend"`

	// Hosted service settings.
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	APIKey          string `yaml:"api_key" json:"-"`
	APIVersion      string `yaml:"api_version" json:"api_version"`
	MetadataIndex   string `yaml:"metadata_index" json:"metadata_index"`
	FileIndex       string `yaml:"file_index" json:"file_index"`
	MetadataIndexer string `yaml:"metadata_indexer" json:"metadata_indexer"`
	FileIndexer     string `yaml:"file_indexer" json:"file_indexer"`

	// Timeout bounds one index request, e.g. "30s".
	Timeout string `yaml:"timeout" json:"timeout"`

	// Top caps hits per index query.
	Top int `yaml:"top" json:"top"`

	// LocalPath holds the bleve indexes when Backend is "local".
	LocalPath string `yaml:"local_path" json:"local_path"`
}

// StorageConfig describes where snippet blobs live and how their paths look.
type StorageConfig struct {
	PathLayout PathLayoutConfig `yaml:"path_layout" json:"path_layout"`

	// BlobRoot is the local blob directory (local backend and watcher).
	BlobRoot  string `yaml:"blob_root" json:"blob_root"`
	Container string `yaml:"container" json:"container"`
	// Prefix is the slash-separated folder path between container and snippet.
	Prefix string `yaml:"prefix" json:"prefix"`
}

// PathLayoutConfig locates the snippet identity in a decoded storage path.
type PathLayoutConfig struct {
	SnippetSegment int `yaml:"snippet_segment" json:"snippet_segment"`
}

// DatabaseConfig configures the system of record.
type DatabaseConfig struct {
	Path            string `yaml:"path" json:"path"`
	LookupCacheSize int    `yaml:"lookup_cache_size" json:"lookup_cache_size"`
}

// SearchConfig configures reconciliation.
type SearchConfig struct {
	MaxResults int    `yaml:"max_results" json:"max_results"`
	Timeout    string `yaml:"timeout" json:"timeout"`
	// Parallel issues the two index queries concurrently. Nil means default (true).
	Parallel *bool `yaml:"parallel" json:"parallel"`
}

// RefreshConfig configures the index refresh trigger and blob watcher.
type RefreshConfig struct {
	MaxRetries   int    `yaml:"max_retries" json:"max_retries"`
	InitialDelay string `yaml:"initial_delay" json:"initial_delay"`
	Timeout      string `yaml:"timeout" json:"timeout"`
	Debounce     string `yaml:"debounce" json:"debounce"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	dataDir := DataDir()
	parallel := true
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Backend:       BackendLocal,
			APIVersion:    "2020-06-30",
			MetadataIndex: "snippets",
			FileIndex:     "files",
			Timeout:       "30s",
			Top:           50,
			LocalPath:     filepath.Join(dataDir, "index"),
		},
		Storage: StorageConfig{
			PathLayout: PathLayoutConfig{SnippetSegment: blobpath.DefaultSnippetSegment},
			BlobRoot:   filepath.Join(dataDir, "blobs"),
			Container:  "snippets",
			Prefix:     "files",
		},
		Database: DatabaseConfig{
			Path:            filepath.Join(dataDir, "snipsearch.db"),
			LookupCacheSize: 1000,
		},
		Search: SearchConfig{
			MaxResults: 20,
			Timeout:    "10s",
			Parallel:   &parallel,
		},
		Refresh: RefreshConfig{
			MaxRetries:   3,
			InitialDelay: "500ms",
			Timeout:      "2m",
			Debounce:     "500ms",
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// DataDir returns ~/.snipsearch, the home of the database, indexes and logs.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".snipsearch")
	}
	return filepath.Join(home, ".snipsearch")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/snipsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/snipsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "snipsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "snipsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "snipsearch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig returns nil config and nil error when no user file exists.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var parsed Config
	if err := parseYAML(configPath, &parsed); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &parsed, nil
}

// Load loads configuration for the given working directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/snipsearch/config.yaml)
//  3. Project config (.snipsearch.yaml in dir)
//  4. Environment variables (SNIPSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile loads .snipsearch.yaml, falling back to .snipsearch.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".snipsearch.yaml", ".snipsearch.yml"} {
		p := filepath.Join(dir, name)
		if !fileExists(p) {
			continue
		}
		var parsed Config
		if err := parseYAML(p, &parsed); err != nil {
			return err
		}
		c.mergeWith(&parsed)
		return nil
	}
	return nil
}

func parseYAML(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Index
	mergeString(&c.Index.Backend, other.Index.Backend)
	mergeString(&c.Index.Endpoint, other.Index.Endpoint)
	mergeString(&c.Index.APIKey, other.Index.APIKey)
	mergeString(&c.Index.APIVersion, other.Index.APIVersion)
	mergeString(&c.Index.MetadataIndex, other.Index.MetadataIndex)
	mergeString(&c.Index.FileIndex, other.Index.FileIndex)
	mergeString(&c.Index.MetadataIndexer, other.Index.MetadataIndexer)
	mergeString(&c.Index.FileIndexer, other.Index.FileIndexer)
	mergeString(&c.Index.Timeout, other.Index.Timeout)
	mergeString(&c.Index.LocalPath, other.Index.LocalPath)
	if other.Index.Top != 0 {
		c.Index.Top = other.Index.Top
	}

	// Storage
	if other.Storage.PathLayout.SnippetSegment != 0 {
		c.Storage.PathLayout.SnippetSegment = other.Storage.PathLayout.SnippetSegment
	}
	mergeString(&c.Storage.BlobRoot, other.Storage.BlobRoot)
	mergeString(&c.Storage.Container, other.Storage.Container)
	mergeString(&c.Storage.Prefix, other.Storage.Prefix)

	// Database
	mergeString(&c.Database.Path, other.Database.Path)
	if other.Database.LookupCacheSize != 0 {
		c.Database.LookupCacheSize = other.Database.LookupCacheSize
	}

	// Search
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	mergeString(&c.Search.Timeout, other.Search.Timeout)
	// Parallel is a pointer so an explicit false survives the merge
	if other.Search.Parallel != nil {
		v := *other.Search.Parallel
		c.Search.Parallel = &v
	}

	// Refresh
	if other.Refresh.MaxRetries != 0 {
		c.Refresh.MaxRetries = other.Refresh.MaxRetries
	}
	mergeString(&c.Refresh.InitialDelay, other.Refresh.InitialDelay)
	mergeString(&c.Refresh.Timeout, other.Refresh.Timeout)
	mergeString(&c.Refresh.Debounce, other.Refresh.Debounce)

	// Server
	mergeString(&c.Server.Transport, other.Server.Transport)
	mergeString(&c.Server.LogLevel, other.Server.LogLevel)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// applyEnvOverrides applies SNIPSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	envString := map[string]*string{
		"SNIPSEARCH_INDEX_BACKEND":  &c.Index.Backend,
		"SNIPSEARCH_ENDPOINT":       &c.Index.Endpoint,
		"SNIPSEARCH_API_KEY":        &c.Index.APIKey,
		"SNIPSEARCH_API_VERSION":    &c.Index.APIVersion,
		"SNIPSEARCH_LOCAL_PATH":     &c.Index.LocalPath,
		"SNIPSEARCH_BLOB_ROOT":      &c.Storage.BlobRoot,
		"SNIPSEARCH_DB_PATH":        &c.Database.Path,
		"SNIPSEARCH_SEARCH_TIMEOUT": &c.Search.Timeout,
		"SNIPSEARCH_LOG_LEVEL":      &c.Server.LogLevel,
		"SNIPSEARCH_TRANSPORT":      &c.Server.Transport,
	}
	for key, dst := range envString {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("SNIPSEARCH_SNIPPET_SEGMENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Storage.PathLayout.SnippetSegment = n
		}
	}
	if v := os.Getenv("SNIPSEARCH_PARALLEL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Search.Parallel = &b
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	switch c.Index.Backend {
	case BackendLocal:
	case BackendHosted:
		if c.Index.Endpoint == "" {
			return fmt.Errorf("index.endpoint is required for the hosted backend")
		}
		if c.Index.APIKey == "" {
			return fmt.Errorf("index.api_key is required for the hosted backend")
		}
	default:
		return fmt.Errorf("index.backend must be %q or %q, got %q", BackendHosted, BackendLocal, c.Index.Backend)
	}
	if c.Index.MetadataIndex == "" || c.Index.FileIndex == "" {
		return fmt.Errorf("index.metadata_index and index.file_index are required")
	}
	if c.Index.Top < 0 {
		return fmt.Errorf("index.top must be non-negative, got %d", c.Index.Top)
	}

	layout := c.Layout()
	if err := layout.Validate(); err != nil {
		return fmt.Errorf("storage.path_layout: %w", err)
	}
	if got := len(c.PrefixSegments()); got != layout.PrefixDepth() {
		return fmt.Errorf("storage.prefix %q has %d segments, path layout expects %d",
			c.Storage.Prefix, got, layout.PrefixDepth())
	}
	if c.Storage.Container == "" || strings.Contains(c.Storage.Container, "/") {
		return fmt.Errorf("storage.container must be a single path segment, got %q", c.Storage.Container)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.LookupCacheSize < 0 {
		return fmt.Errorf("database.lookup_cache_size must be non-negative, got %d", c.Database.LookupCacheSize)
	}

	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.Refresh.MaxRetries < 0 {
		return fmt.Errorf("refresh.max_retries must be non-negative, got %d", c.Refresh.MaxRetries)
	}

	durations := map[string]string{
		"index.timeout":         c.Index.Timeout,
		"search.timeout":        c.Search.Timeout,
		"refresh.initial_delay": c.Refresh.InitialDelay,
		"refresh.timeout":       c.Refresh.Timeout,
		"refresh.debounce":      c.Refresh.Debounce,
	}
	for name, v := range durations {
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err != nil || d < 0 {
			return fmt.Errorf("%s must be a non-negative duration, got %q", name, v)
		}
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// Layout returns the storage path layout.
func (c *Config) Layout() blobpath.Layout {
	return blobpath.Layout{SnippetSegment: c.Storage.PathLayout.SnippetSegment}
}

// PrefixSegments splits storage.prefix into folder names.
func (c *Config) PrefixSegments() []string {
	p := strings.Trim(path.Clean("/"+c.Storage.Prefix), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// IsParallel reports whether the index queries run concurrently.
func (c *Config) IsParallel() bool {
	return c.Search.Parallel == nil || *c.Search.Parallel
}

// IndexTimeout returns index.timeout, or 0 when unset.
func (c *Config) IndexTimeout() time.Duration { return parseDuration(c.Index.Timeout) }

// SearchTimeout returns search.timeout, or 0 when unset.
func (c *Config) SearchTimeout() time.Duration { return parseDuration(c.Search.Timeout) }

// RefreshInitialDelay returns refresh.initial_delay, or 0 when unset.
func (c *Config) RefreshInitialDelay() time.Duration { return parseDuration(c.Refresh.InitialDelay) }

// RefreshTimeout returns refresh.timeout, or 0 when unset.
func (c *Config) RefreshTimeout() time.Duration { return parseDuration(c.Refresh.Timeout) }

// RefreshDebounce returns refresh.debounce, or 0 when unset.
func (c *Config) RefreshDebounce() time.Duration { return parseDuration(c.Refresh.Debounce) }

// parseDuration assumes Validate already rejected bad values.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
