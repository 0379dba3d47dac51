package configs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/cardapiodigital/cardapio-mcp/internal/domain"
)

// Config holds the application configuration, loaded from environment
// variables with the prefix "CARDAPIO". The store DSN is the only hard
// requirement: without it the process exits at startup.
type Config struct {
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	// AuthToken enables the bearer gate on non-public endpoints when set.
	AuthToken   string `envconfig:"AUTH_TOKEN"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"cardapio-mcp"`
	// PublicDomain is the externally visible host used to build the full
	// menu URL included in tool responses.
	PublicDomain string `envconfig:"PUBLIC_DOMAIN" default:"cardapio.digital"`
	CatalogID    string `envconfig:"CATALOG_ID" default:"cardapio-principal"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`

	// No write timeout is exposed: the SSE stream on GET / is long-lived
	// and a write deadline would sever it.
	ServerReadTimeout time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"10s"`
	ServerIdleTimeout time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`
	KeepAliveInterval time.Duration `envconfig:"KEEPALIVE_INTERVAL" default:"30s"`

	// StoreInfoFile optionally overrides the built-in store sheet with an
	// operator-provided YAML file.
	StoreInfoFile string `envconfig:"STORE_INFO_FILE"`

	StoreInfo domain.StoreInfo `ignored:"true"`
}

// defaultStoreInfo is the built-in vendor sheet served by informacoes_loja.
func defaultStoreInfo() domain.StoreInfo {
	return domain.StoreInfo{
		Name:        "Cardápio Digital",
		Address:     "Rua das Palmeiras, 123 - Centro",
		Hours:       "Ter-Dom 11h às 22h",
		Phone:       "+55 11 99999-0000",
		Description: "Salgados e lanches artesanais, feitos na hora.",
		CoverageArea: []string{
			"Centro",
			"Jardim América",
			"Vila Nova",
		},
	}
}

// Load reads configuration from the environment and, when configured, merges
// the store sheet from a YAML file over the built-in defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("cardapio", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	cfg.StoreInfo = defaultStoreInfo()
	if cfg.StoreInfoFile != "" {
		raw, err := os.ReadFile(cfg.StoreInfoFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read store info file '%s': %w", cfg.StoreInfoFile, err)
		}
		if err := yaml.Unmarshal(raw, &cfg.StoreInfo); err != nil {
			return nil, fmt.Errorf("failed to unmarshal store info file '%s': %w", cfg.StoreInfoFile, err)
		}
		slog.Info("Loaded store info from file.", slog.String("path", cfg.StoreInfoFile))
	}

	return &cfg, nil
}

// CatalogURL is the public URL of the full menu.
func (c *Config) CatalogURL() string {
	return fmt.Sprintf("https://%s/cardapio", c.PublicDomain)
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}
