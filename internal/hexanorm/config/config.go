package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the configuration of a conformance check.
// It declares layers, the allow-set, rule settings, and scanning/persistence settings.
type Config struct {
	RootPackage    string          `yaml:"root_package" json:"root_package"`       // Only units under this package are catalogued.
	ExcludedDirs   []string        `yaml:"excluded_dirs" json:"excluded_dirs"`     // Directory names skipped while scanning.
	IncludeTests   bool            `yaml:"include_tests" json:"include_tests"`     // Scan src/test trees as well.
	PersistenceDir string          `yaml:"persistence_dir" json:"persistence_dir"` // Directory holding the run history database.
	Workers        int             `yaml:"workers" json:"workers"`                 // Worker pool size; 0 means GOMAXPROCS.
	Layers         []Layer         `yaml:"layers" json:"layers"`
	Allow          []Allow         `yaml:"allow" json:"allow"`
	DependencyRule DependencyRule  `yaml:"dependency_rule" json:"dependency_rule"`
	Encapsulation  []Encapsulation `yaml:"encapsulation" json:"encapsulation"`
	Log            Log             `yaml:"log" json:"log"`
}

type Layer struct {
	Name     string   `yaml:"name" json:"name"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

type Allow struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

type DependencyRule struct {
	Name     string `yaml:"name" json:"name"`
	Severity string `yaml:"severity" json:"severity"`
	Disabled bool   `yaml:"disabled" json:"disabled"`
}

type Encapsulation struct {
	Name          string   `yaml:"name" json:"name"`
	Layer         string   `yaml:"layer" json:"layer"`
	AllowedKinds  []string `yaml:"allowed_kinds" json:"allowed_kinds"`
	Visibility    string   `yaml:"visibility" json:"visibility"` // not-public (default), package-private, private
	Severity      string   `yaml:"severity" json:"severity"`
	IncludeNested bool     `yaml:"include_nested" json:"include_nested"`
}

type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// FileNames are tried in order when no explicit config path is given.
var FileNames = []string{"hexanorm.yaml", "hexanorm.yml", "hexanorm.json"}

// ErrNotFound is returned by Discover when the root holds no config file.
var ErrNotFound = errors.New("no hexanorm config file found")

// DefaultConfig is the Clean Architecture layering: platform code may use use cases, never the
// reverse, and concrete platform classes stay package-private.
var DefaultConfig = Config{
	ExcludedDirs:   []string{"node_modules", "dist", "build", ".git", "vendor", "target", ".hexanorm"},
	PersistenceDir: ".hexanorm",
	Layers: []Layer{
		{Name: "UseCase", Patterns: []string{"..usecase.."}},
		{Name: "Platform", Patterns: []string{"..platform.."}},
	},
	Allow: []Allow{
		{From: "Platform", To: "UseCase"},
	},
	Encapsulation: []Encapsulation{
		{Layer: "Platform", Visibility: "package-private"},
	},
	Log: Log{Level: "INFO", Format: "CONSOLE"},
}

// Default returns a deep copy of DefaultConfig.
func Default() *Config {
	cfg := DefaultConfig
	cfg.ExcludedDirs = append([]string(nil), DefaultConfig.ExcludedDirs...)
	cfg.Layers = make([]Layer, len(DefaultConfig.Layers))
	for i, l := range DefaultConfig.Layers {
		cfg.Layers[i] = Layer{Name: l.Name, Patterns: append([]string(nil), l.Patterns...)}
	}
	cfg.Allow = append([]Allow(nil), DefaultConfig.Allow...)
	cfg.Encapsulation = make([]Encapsulation, len(DefaultConfig.Encapsulation))
	for i, e := range DefaultConfig.Encapsulation {
		e.AllowedKinds = append([]string(nil), e.AllowedKinds...)
		cfg.Encapsulation[i] = e
	}
	return &cfg
}

// LoadConfig reads and parses the config file at path (YAML or JSON).
// Missing scanning/logging fields fall back to DefaultConfig; layers and rules do not, since an
// explicitly empty layer list is a valid (if useless) declaration.
// Environment overrides, optionally loaded from a .env file, are applied last.
func LoadConfig(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if len(cfg.ExcludedDirs) == 0 {
		cfg.ExcludedDirs = append([]string(nil), DefaultConfig.ExcludedDirs...)
	}
	if cfg.PersistenceDir == "" {
		cfg.PersistenceDir = DefaultConfig.PersistenceDir
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultConfig.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultConfig.Log.Format
	}

	applyEnv(&cfg)
	return &cfg, nil
}

// Discover looks for one of FileNames in rootDir. It returns ErrNotFound when none exists.
func Discover(rootDir string) (string, error) {
	for _, name := range FileNames {
		p := filepath.Join(rootDir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", ErrNotFound
}

// Resolve loads the explicit path when given, otherwise the config discovered in rootDir,
// otherwise the defaults. The bool reports whether defaults were used.
func Resolve(explicit, rootDir string) (*Config, bool, error) {
	if explicit != "" {
		cfg, err := LoadConfig(explicit)
		return cfg, false, err
	}
	path, err := Discover(rootDir)
	if errors.Is(err, ErrNotFound) {
		cfg := Default()
		applyEnv(cfg)
		return cfg, true, nil
	}
	cfg, err := LoadConfig(path)
	return cfg, false, err
}

func applyEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("HEXANORM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HEXANORM_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("HEXANORM_PERSISTENCE_DIR"); v != "" {
		cfg.PersistenceDir = v
	}
	if v := os.Getenv("HEXANORM_ROOT_PACKAGE"); v != "" {
		cfg.RootPackage = v
	}
	if v := os.Getenv("HEXANORM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
}
