package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Logging    LoggingConfig    `toml:"logging"`
	Validation ValidationConfig `toml:"validation"`
	Articles   ArticlesConfig   `toml:"articles"`
	Server     ServerConfig     `toml:"server"`
	UI         UIConfig         `toml:"ui"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string           `toml:"level"`
	DevFile DevFileLogConfig `toml:"dev_file"`
}

type DevFileLogConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ValidationConfig struct {
	Mode string `toml:"mode"` // lenient | strict
}

type ArticlesConfig struct {
	BaseURL string `toml:"base_url"`
	Timeout string `toml:"timeout"`
}

type ServerConfig struct {
	HTTP        string `toml:"http"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// UIConfig holds terminal editor presentation settings.
type UIConfig struct {
	MarkdownStyle string `toml:"markdown_style"`
}

// markdownStyles lists the glamour standard styles accepted for ui.markdown_style.
var markdownStyles = []string{"ascii", "dark", "dracula", "light", "notty", "pink", "tokyo-night"}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileLogConfig{
				Enabled: true,
				Dir:     ".atlascope/log",
			},
		},
		Validation: ValidationConfig{
			Mode: "lenient",
		},
		Articles: ArticlesConfig{
			BaseURL: "https://sky-atlas.powerhouse.io",
			Timeout: "10s",
		},
		Server: ServerConfig{
			HTTP:        "127.0.0.1:5437",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		UI: UIConfig{
			MarkdownStyle: "dark",
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}

	if _, err := charmLog.ParseLevel(strings.TrimSpace(c.Logging.Level)); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	switch strings.TrimSpace(strings.ToLower(c.Validation.Mode)) {
	case "", "lenient", "strict":
	default:
		return fmt.Errorf("invalid validation.mode: %q", c.Validation.Mode)
	}

	if base := strings.TrimSpace(c.Articles.BaseURL); base != "" {
		parsed, err := url.Parse(base)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid articles.base_url: %q", c.Articles.BaseURL)
		}
	}
	if _, err := c.ArticleTimeout(); err != nil {
		return err
	}

	for name, endpoint := range map[string]string{
		"server.api_endpoint": c.Server.APIEndpoint,
		"server.mcp_endpoint": c.Server.MCPEndpoint,
	} {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
			return fmt.Errorf("invalid %s: %q must start with /", name, endpoint)
		}
	}

	if style := strings.TrimSpace(c.UI.MarkdownStyle); style != "" && !slices.Contains(markdownStyles, style) {
		return fmt.Errorf("invalid ui.markdown_style: %q", c.UI.MarkdownStyle)
	}

	return nil
}

// ArticleTimeout parses articles.timeout. Empty means no explicit timeout.
func (c Config) ArticleTimeout() (time.Duration, error) {
	raw := strings.TrimSpace(c.Articles.Timeout)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid articles.timeout: %q", c.Articles.Timeout)
	}
	return d, nil
}
