// Package config loads settings from .env, the environment, an optional
// YAML file under ~/.mymanus and command-line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/xiaokk2024/mymanus1/internal/database"
	"github.com/xiaokk2024/mymanus1/tools"
)

// ErrConfiguration is returned when required settings are missing.
var ErrConfiguration = errors.New("configuration error")

// Keys used in the config file and for flag binding.
const (
	KeyAPIKey        = "api_key"
	KeyModel         = "model"
	KeyBaseURL       = "base_url"
	KeyMaxIterations = "max_iterations"
	KeyTimeout       = "timeout"
	KeyVerbose       = "verbose"
	KeyFigureDir     = "figure_dir"
	KeyReportDir     = "report_dir"
	KeyDataDir       = "data_dir"
)

// envBindings maps config keys to environment variables. When several
// variables are listed the first one set wins.
var envBindings = map[string][]string{
	KeyAPIKey:               {"API_KEY"},
	KeyModel:                {"MODEL"},
	KeyBaseURL:              {"BASE_URL"},
	KeyMaxIterations:        {"MAX_ITERATIONS"},
	KeyFigureDir:            {"FIGURE_DIR"},
	KeyReportDir:            {"REPORT_DIR"},
	KeyDataDir:              {"MYMANUS_HOME"},
	"database.driver":       {"DB_DRIVER"},
	"database.host":         {"HOST"},
	"database.user":         {"MYSQL_USER", "USER"},
	"database.password":     {"MYSQL_PW"},
	"database.name":         {"DB_NAME"},
	"database.port":         {"PORT"},
	"search.google_api_key": {"GOOGLE_SEARCH_API_KEY"},
	"search.cse_id":         {"CSE_ID"},
	"search.cookie":         {"SEARCH_COOKIE"},
	"search.user_agent":     {"SEARCH_USER_AGENT"},
	"github.token":          {"GITHUB_TOKEN"},
	"proxy.http":            {"HTTP_PROXY", "http_proxy"},
	"proxy.https":           {"HTTPS_PROXY", "https_proxy"},
}

// Config is the resolved application configuration.
type Config struct {
	APIKey        string
	Model         string
	BaseURL       string
	MaxIterations int
	Timeout       time.Duration
	Verbose       bool

	Database database.Config
	Search   SearchConfig
	GitHub   GitHubConfig
	Proxy    tools.ProxyConfig

	FigureDir string
	ReportDir string
	DataDir   string
}

// SearchConfig holds web search credentials.
type SearchConfig struct {
	GoogleAPIKey string
	CSEID        string
	Cookie       string
	UserAgent    string
}

// GitHubConfig holds the optional API token.
type GitHubConfig struct {
	Token string
}

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyMaxIterations, 10)
	v.SetDefault(KeyTimeout, 10*time.Minute)
	v.SetDefault(KeyFigureDir, tools.DefaultFigureDir)
	v.SetDefault(KeyReportDir, ".")
	v.SetDefault("database.driver", database.DriverMySQL)

	for key, envs := range envBindings {
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}
	return v
}

// LoadDotEnv loads .env files into the environment. Missing files are not
// an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// DefaultDataDir returns ~/.mymanus.
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".mymanus"), nil
}

// Load reads the optional config file and resolves every setting. An empty
// configFile means <data dir>/config.yaml.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile == "" {
		dir := v.GetString(KeyDataDir)
		if dir == "" {
			var err error
			if dir, err = DefaultDataDir(); err != nil {
				return nil, err
			}
		}
		configFile = filepath.Join(dir, "config.yaml")
	}

	if _, err := os.Stat(configFile); err == nil {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	dataDir := v.GetString(KeyDataDir)
	if dataDir == "" {
		dataDir = filepath.Dir(configFile)
	}

	return &Config{
		APIKey:        strings.TrimSpace(v.GetString(KeyAPIKey)),
		Model:         strings.TrimSpace(v.GetString(KeyModel)),
		BaseURL:       strings.TrimSpace(v.GetString(KeyBaseURL)),
		MaxIterations: v.GetInt(KeyMaxIterations),
		Timeout:       v.GetDuration(KeyTimeout),
		Verbose:       v.GetBool(KeyVerbose),
		Database: database.Config{
			Driver:   v.GetString("database.driver"),
			Host:     v.GetString("database.host"),
			User:     v.GetString("database.user"),
			Password: v.GetString("database.password"),
			Name:     v.GetString("database.name"),
			Port:     v.GetInt("database.port"),
		},
		Search: SearchConfig{
			GoogleAPIKey: v.GetString("search.google_api_key"),
			CSEID:        v.GetString("search.cse_id"),
			Cookie:       v.GetString("search.cookie"),
			UserAgent:    v.GetString("search.user_agent"),
		},
		GitHub: GitHubConfig{Token: v.GetString("github.token")},
		Proxy: tools.ProxyConfig{
			HTTP:  v.GetString("proxy.http"),
			HTTPS: v.GetString("proxy.https"),
		},
		FigureDir: v.GetString(KeyFigureDir),
		ReportDir: v.GetString(KeyReportDir),
		DataDir:   dataDir,
	}, nil
}

// Validate reports every missing required value in one error.
func (c *Config) Validate() error {
	var missing []string
	if c.APIKey == "" {
		missing = append(missing, "API_KEY")
	}
	if c.Model == "" {
		missing = append(missing, "MODEL")
	}
	if c.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not set; check the .env file or flags", ErrConfiguration, strings.Join(missing, ", "))
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("%w: max iterations must be positive, got %d", ErrConfiguration, c.MaxIterations)
	}
	return nil
}

// StorePath returns the bbolt file location.
func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "mymanus.db")
}
