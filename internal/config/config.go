// Package config loads the siosearch YAML configuration and maps it onto the
// option structs of the pipeline, archive client and storage backends.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"siosearch/internal/archive"
	"siosearch/internal/blob"
	"siosearch/internal/core"
	"siosearch/internal/results"
)

// Config holds all siosearch configuration.
type Config struct {
	Targets     []string             `yaml:"targets"`
	Transitions core.TransitionTable `yaml:"transitions"`
	Archive     ArchiveConfig        `yaml:"archive"`
	Download    DownloadConfig       `yaml:"download"`
	Output      OutputConfig         `yaml:"output"`
	Blob        BlobConfig           `yaml:"blob"`
	Results     ResultsConfig        `yaml:"results"`
	Metrics     MetricsConfig        `yaml:"metrics"`
	Logging     LoggingConfig        `yaml:"logging"`
}

// ArchiveConfig configures the TAP query client.
type ArchiveConfig struct {
	Mirror            string  `yaml:"mirror"`
	BaseURL           string  `yaml:"base_url,omitempty"`
	ResolverURL       string  `yaml:"resolver_url,omitempty"`
	RadiusArcmin      float64 `yaml:"radius_arcmin"`
	PublicOnly        bool    `yaml:"public_only"`
	Published         string  `yaml:"published"` // any, published, unpublished
	Timeout           string  `yaml:"timeout,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRecords        int     `yaml:"max_records,omitempty"`
	SplitSPW          bool    `yaml:"split_spw"`
}

// DownloadConfig configures the bulk download stage.
type DownloadConfig struct {
	Enabled     bool   `yaml:"enabled"`
	UseCache    bool   `yaml:"use_cache"`
	DatalinkURL string `yaml:"datalink_url,omitempty"`
	// Dir holds products when no blob driver is configured. Defaults to
	// alma_products under the output directory.
	Dir string `yaml:"dir,omitempty"`
}

// OutputConfig configures where reports are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// BlobConfig selects the object store used for published reports and the
// product cache.
type BlobConfig struct {
	Driver    string `yaml:"driver"` // fs, s3, minio, memory; empty disables publishing
	FSRoot    string `yaml:"fs_root,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Secure    bool   `yaml:"secure,omitempty"`
}

// ResultsConfig selects the run history backend.
type ResultsConfig struct {
	Driver      string `yaml:"driver"` // none, memory, sqlite, postgres
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
}

// MetricsConfig configures stage metrics and tracing sinks. Empty values
// disable the sink.
type MetricsConfig struct {
	Textfile   string `yaml:"textfile,omitempty"`
	ExpvarName string `yaml:"expvar_name,omitempty"`
	TraceFile  string `yaml:"trace_file,omitempty"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultTargets are the five MAPS protoplanetary disks.
func DefaultTargets() []string {
	return []string{"IM Lup", "AS 209", "GM Aur", "HD 163296", "MWC 480"}
}

// DefaultConfig returns the built-in configuration: the MAPS targets, the
// SiO v=0 ladder and a one arcminute public-only search on the ESO mirror.
func DefaultConfig() *Config {
	return &Config{
		Targets:     DefaultTargets(),
		Transitions: core.SiOV0Transitions(),
		Archive: ArchiveConfig{
			Mirror:       string(archive.MirrorESO),
			RadiusArcmin: 1.0,
			PublicOnly:   true,
			Published:    "any",
		},
		Output:  OutputConfig{Dir: "."},
		Results: ResultsConfig{Driver: string(results.DriverNone), SQLitePath: "siosearch.db"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load reads path over the defaults and applies SIOSEARCH_* environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Environment overrides, applied after the file:
//
//	SIOSEARCH_TARGETS: comma separated target names
//	SIOSEARCH_MIRROR: eso|nrao|naoj
//	SIOSEARCH_TAP_URL: TAP root overriding the mirror
//	SIOSEARCH_RADIUS_ARCMIN: cone radius
//	SIOSEARCH_OUTPUT_DIR: report directory
//	SIOSEARCH_DOWNLOAD, SIOSEARCH_USE_CACHE: booleans
//	SIOSEARCH_BLOB_DRIVER, SIOSEARCH_BLOB_BUCKET, SIOSEARCH_BLOB_ENDPOINT,
//	SIOSEARCH_BLOB_ACCESS_KEY, SIOSEARCH_BLOB_SECRET_KEY
//	SIOSEARCH_RESULTS_DRIVER, SIOSEARCH_SQLITE_PATH, SIOSEARCH_POSTGRES_DSN
//	SIOSEARCH_LOG_LEVEL, SIOSEARCH_LOG_FORMAT
func (c *Config) applyEnvOverrides() error {
	str := map[string]*string{
		"SIOSEARCH_MIRROR":          &c.Archive.Mirror,
		"SIOSEARCH_TAP_URL":         &c.Archive.BaseURL,
		"SIOSEARCH_OUTPUT_DIR":      &c.Output.Dir,
		"SIOSEARCH_BLOB_DRIVER":     &c.Blob.Driver,
		"SIOSEARCH_BLOB_BUCKET":     &c.Blob.Bucket,
		"SIOSEARCH_BLOB_ENDPOINT":   &c.Blob.Endpoint,
		"SIOSEARCH_BLOB_ACCESS_KEY": &c.Blob.AccessKey,
		"SIOSEARCH_BLOB_SECRET_KEY": &c.Blob.SecretKey,
		"SIOSEARCH_RESULTS_DRIVER":  &c.Results.Driver,
		"SIOSEARCH_SQLITE_PATH":     &c.Results.SQLitePath,
		"SIOSEARCH_POSTGRES_DSN":    &c.Results.PostgresDSN,
		"SIOSEARCH_LOG_LEVEL":       &c.Logging.Level,
		"SIOSEARCH_LOG_FORMAT":      &c.Logging.Format,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	if v := os.Getenv("SIOSEARCH_TARGETS"); v != "" {
		c.Targets = SplitTargets(v)
	}
	if v := os.Getenv("SIOSEARCH_RADIUS_ARCMIN"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SIOSEARCH_RADIUS_ARCMIN: %w", err)
		}
		c.Archive.RadiusArcmin = r
	}
	flags := map[string]*bool{
		"SIOSEARCH_DOWNLOAD":  &c.Download.Enabled,
		"SIOSEARCH_USE_CACHE": &c.Download.UseCache,
	}
	for key, dst := range flags {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
	}
	return nil
}

// SplitTargets splits a comma separated list, dropping blanks.
func SplitTargets(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return fmt.Errorf("no targets configured")
	}
	if err := c.Transitions.Validate(); err != nil {
		return err
	}
	if c.Archive.BaseURL == "" {
		if _, err := archive.ParseMirror(c.Archive.Mirror); err != nil {
			return err
		}
	}
	if c.Archive.RadiusArcmin <= 0 {
		return fmt.Errorf("archive.radius_arcmin must be positive, got %v", c.Archive.RadiusArcmin)
	}
	if _, err := c.PublishedFilter(); err != nil {
		return err
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if c.Archive.RequestsPerSecond < 0 {
		return fmt.Errorf("archive.requests_per_second must not be negative")
	}
	if d := c.Blob.Driver; d != "" {
		if !validBlobDriver(blob.Driver(strings.ToLower(d))) {
			return fmt.Errorf("unknown blob driver %q (valid: %v)", d, blob.Drivers())
		}
	}
	switch results.Driver(strings.ToLower(c.Results.Driver)) {
	case "", results.DriverNone, results.DriverMemory, results.DriverSQLite, results.DriverPostgres:
	default:
		return fmt.Errorf("unknown results driver %q", c.Results.Driver)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

func validBlobDriver(d blob.Driver) bool {
	for _, known := range blob.Drivers() {
		if d == known {
			return true
		}
	}
	return false
}

// PublishedFilter maps archive.published onto the query filter.
func (c *Config) PublishedFilter() (core.PublishedFilter, error) {
	switch strings.ToLower(strings.TrimSpace(c.Archive.Published)) {
	case "", "any":
		return core.PublishedAny, nil
	case "published":
		return core.PublishedOnly, nil
	case "unpublished":
		return core.PublishedUnpublished, nil
	default:
		return "", fmt.Errorf("archive.published must be any, published or unpublished, got %q", c.Archive.Published)
	}
}

// Timeout parses archive.timeout; empty means no client timeout.
func (c *Config) Timeout() (time.Duration, error) {
	if c.Archive.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Archive.Timeout)
	if err != nil {
		return 0, fmt.Errorf("archive.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("archive.timeout must not be negative")
	}
	return d, nil
}

// CoreOptions builds the immutable run configuration.
func (c *Config) CoreOptions() (core.Options, error) {
	published, err := c.PublishedFilter()
	if err != nil {
		return core.Options{}, err
	}
	return core.Options{
		Targets:     append([]string(nil), c.Targets...),
		Transitions: c.Transitions.Clone(),
		Query: core.QueryOptions{
			RadiusArcmin: c.Archive.RadiusArcmin,
			Mirror:       strings.ToLower(c.Archive.Mirror),
			PublicOnly:   c.Archive.PublicOnly,
			Published:    published,
		},
		Download: c.Download.Enabled,
		UseCache: c.Download.UseCache,
	}, nil
}

// ArchiveOptions builds the TAP client options, without logger or transport.
func (c *Config) ArchiveOptions() (archive.Options, error) {
	timeout, err := c.Timeout()
	if err != nil {
		return archive.Options{}, err
	}
	return archive.Options{
		BaseURL:           c.Archive.BaseURL,
		ResolverURL:       c.Archive.ResolverURL,
		Timeout:           timeout,
		RequestsPerSecond: c.Archive.RequestsPerSecond,
		MaxRecords:        c.Archive.MaxRecords,
		SplitSPW:          c.Archive.SplitSPW,
	}, nil
}

// DatalinkURL returns the configured datalink endpoint or the mirror's.
func (c *Config) DatalinkURL() (string, error) {
	if c.Download.DatalinkURL != "" {
		return c.Download.DatalinkURL, nil
	}
	m, err := archive.ParseMirror(c.Archive.Mirror)
	if err != nil {
		return "", err
	}
	return m.DatalinkURL(), nil
}

// ProductDir is the filesystem product cache used when no blob driver is set.
func (c *Config) ProductDir() string {
	if c.Download.Dir != "" {
		return c.Download.Dir
	}
	return filepath.Join(c.Output.Dir, "alma_products")
}

// BlobStore maps the blob section.
func (c *Config) BlobStore() blob.Config {
	b := c.Blob
	return blob.Config{
		Driver:    blob.Driver(b.Driver),
		FSRoot:    b.FSRoot,
		Bucket:    b.Bucket,
		Prefix:    b.Prefix,
		Region:    b.Region,
		Endpoint:  b.Endpoint,
		PathStyle: b.PathStyle,
		AccessKey: b.AccessKey,
		SecretKey: b.SecretKey,
		Secure:    b.Secure,
	}
}

// ResultsStore maps the results section.
func (c *Config) ResultsStore() results.Config {
	return results.Config{
		Driver:      results.Driver(c.Results.Driver),
		SQLitePath:  c.Results.SQLitePath,
		PostgresDSN: c.Results.PostgresDSN,
	}
}
