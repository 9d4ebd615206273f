package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/drivereport/internal/pdf"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Report   Report      `yaml:"report"`
	Datasets Datasets    `yaml:"datasets"`
	PDF      pdf.Options `yaml:"pdf"`
	Output   Output      `yaml:"output"`
	Server   Server      `yaml:"server"`
	Logging  Logging     `yaml:"logging"`
}

type Report struct {
	CatalogPath string `yaml:"catalog_path"`
	DataPath    string `yaml:"data_path"`
	Workers     int    `yaml:"workers"`
}

type Datasets struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepSchedule string        `yaml:"sweep_schedule"`
	Backend       string        `yaml:"backend"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// Dataset storage backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ConfigDir returns the XDG config directory for drivereport.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "drivereport")
}

// DataDir returns the XDG data directory for drivereport.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "drivereport")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/drivereport/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'drivereport init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file. Relative report paths are
// resolved against the config file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	cfg.Report.CatalogPath = resolvePath(base, cfg.Report.CatalogPath)
	cfg.Report.DataPath = resolvePath(base, cfg.Report.DataPath)
	return cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg, err := parse(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Report: Report{
			CatalogPath: "report-config.json",
			DataPath:    "driver-data.json",
			Workers:     4,
		},
		Datasets: Datasets{
			TTL:           30 * time.Minute,
			SweepSchedule: "*/5 * * * *",
			Backend:       BackendSQLite,
		},
		PDF:     pdf.DefaultOptions(),
		Server:  Server{Port: 3000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	switch cfg.Datasets.Backend {
	case BackendSQLite, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown datasets backend %q", cfg.Datasets.Backend)
	}
	if cfg.Datasets.TTL <= 0 {
		return nil, fmt.Errorf("datasets ttl must be positive, got %s", cfg.Datasets.TTL)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DatabasePath returns the SQLite file inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.GetDataDir(), "drivereport.db")
}

// BaseURL is the address the PDF renderer uses to reach this server.
func (c *Config) BaseURL() string {
	if c.Server.BaseURL != "" {
		return strings.TrimRight(c.Server.BaseURL, "/")
	}
	return fmt.Sprintf("http://127.0.0.1:%d", c.Server.Port)
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
