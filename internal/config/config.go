package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Calebs97/riemann-book/internal/foundation/errors"
)

// DefaultConfigFile is the configuration file looked up when -c is not given.
const DefaultConfigFile = "bookbuilder.yaml"

// Config represents the book build configuration.
type Config struct {
	Book      BookConfig      `yaml:"book"`
	Source    SourceConfig    `yaml:"source"`
	Output    OutputConfig    `yaml:"output"`
	Assets    []Asset         `yaml:"assets"`
	Exporter  ExporterConfig  `yaml:"exporter"`
	Execution ExecutionConfig `yaml:"execution"`
	Build     BuildConfig     `yaml:"build"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BookConfig lists the chapters of the book.
type BookConfig struct {
	// Chapters is the canonical ordered chapter list. It is also the set of
	// valid cross-reference targets.
	Chapters []string `yaml:"chapters"`
	// Only restricts processing to these chapters (canonical order is kept).
	Only []string `yaml:"only,omitempty"`
	// Skip removes chapters from processing.
	Skip []string `yaml:"skip,omitempty"`
	// Index names the chapter announced as the site entry point.
	Index string `yaml:"index"`
}

// SourceConfig describes where the notebooks and assets live.
type SourceConfig struct {
	Dir    string `yaml:"dir"`
	Branch string `yaml:"branch,omitempty"` // expected git branch; empty disables the check
}

// OutputConfig represents output configuration.
type OutputConfig struct {
	Directory   string `yaml:"directory"`
	RemoveStale bool   `yaml:"remove_stale"`          // delete <chapter>.html when the chapter fails
	ReportFile  string `yaml:"report_file,omitempty"` // JSON build report, disabled when empty
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

// Asset is a file or directory copied into the output directory before conversion.
type Asset struct {
	Path string    `yaml:"path"`
	Mode AssetMode `yaml:"mode,omitempty"`
}

// ExporterConfig holds HTML exporter options.
type ExporterConfig struct {
	Template   string `yaml:"template,omitempty"` // html/template file; empty uses the built-in page
	Spec       string `yaml:"spec"`               // widget runtime spec identifier
	Stylesheet string `yaml:"stylesheet,omitempty"`
}

// ExecutionConfig controls notebook re-execution before export.
type ExecutionConfig struct {
	Enabled bool          `yaml:"enabled"`
	Binary  string        `yaml:"binary"`
	Kernel  string        `yaml:"kernel"`
	Timeout time.Duration `yaml:"timeout"` // per cell
}

// BuildConfig holds orchestration settings.
type BuildConfig struct {
	Workers     int  `yaml:"workers"`
	FailOnError bool `yaml:"fail_on_error"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads a configuration file on top of the defaults.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewError(errors.CategoryNotFound, "configuration file not found").
				WithContext("path", configPath).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "read config file").Fatal().
			WithContext("path", configPath).Build()
	}

	cfg := Default()
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "parse config file").Fatal().
			WithContext("path", configPath).Build()
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configPath if it exists. When it does not and required
// is false, the built-in book configuration is returned instead.
func LoadOrDefault(configPath string, required bool) (*Config, error) {
	cfg, err := Load(configPath)
	if err == nil {
		return cfg, nil
	}
	if required || !errors.HasCategory(err, errors.CategoryNotFound) {
		return nil, err
	}
	cfg = Default()
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, ValidateConfig(cfg)
}

// loadEnvFiles loads .env and .env.local without overriding the environment.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			fmt.Fprintf(os.Stderr, "Note: could not load %s: %v\n", name, err)
		}
	}
}

// normalize resolves modes and levels after decoding.
func (c *Config) normalize() error {
	for i := range c.Assets {
		raw := string(c.Assets[i].Mode)
		if raw == "" {
			continue
		}
		mode, err := ParseAssetMode(raw)
		if err != nil {
			return errors.WrapError(err, errors.CategoryValidation, "invalid asset mode").Fatal().
				WithContext("path", c.Assets[i].Path).Build()
		}
		c.Assets[i].Mode = mode
	}
	c.Logging.Level = NormalizeLogLevel(string(c.Logging.Level))
	c.Logging.Format = NormalizeLogFormat(string(c.Logging.Format))
	return nil
}

// ProcessList returns the chapters to convert in this run: the canonical list
// narrowed by Only and Skip.
func (c *Config) ProcessList() []string {
	out := make([]string, 0, len(c.Book.Chapters))
	for _, ch := range c.Book.Chapters {
		if len(c.Book.Only) > 0 && !slices.Contains(c.Book.Only, ch) {
			continue
		}
		if slices.Contains(c.Book.Skip, ch) {
			continue
		}
		out = append(out, ch)
	}
	return out
}

// NotebookPath returns the source notebook path for a chapter.
func (c *Config) NotebookPath(chapter string) string {
	return filepath.Join(c.Source.Dir, chapter+NotebookExt)
}

// AssetSource returns the source path of an asset relative to the source directory.
func (c *Config) AssetSource(a Asset) string {
	if filepath.IsAbs(a.Path) {
		return a.Path
	}
	return filepath.Join(c.Source.Dir, a.Path)
}

// Init writes the default configuration to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).Build()
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return errors.InternalError("marshal default config").WithCause(err).Build()
	}
	header := "# bookbuilder configuration. Narrow book.only/book.skip to rebuild a subset.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return errors.FileSystemError("write config file").WithCause(err).
			WithContext("path", configPath).Build()
	}
	return nil
}
