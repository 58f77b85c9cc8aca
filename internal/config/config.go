// Package config loads server configuration from an optional TOML file
// overlaid with environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the server
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Storage    StorageConfig    `toml:"storage"`
	Chain      ChainConfig      `toml:"chain"`
	Collection CollectionConfig `toml:"collection"`
	Pinning    PinningConfig    `toml:"pinning"`
	ImageGen   ImageGenConfig   `toml:"imagegen"`
	Logging    LoggingConfig    `toml:"logging"`
	RateLimit  RateLimitConfig  `toml:"rate_limit"`
	Security   SecurityConfig   `toml:"security"`
	Proxy      ProxyConfig      `toml:"proxy"`
	CORS       CORSConfig       `toml:"cors"`
	Metrics    MetricsConfig    `toml:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int    `toml:"port"`
	Host         string `toml:"host"`
	ReadTimeout  int    `toml:"read_timeout"`  // seconds
	WriteTimeout int    `toml:"write_timeout"` // seconds; covers a full mint
	IdleTimeout  int    `toml:"idle_timeout"`  // seconds
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string         `toml:"type"` // "sqlite" or "postgres"
	Postgres PostgresConfig `toml:"postgres"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string `toml:"url"`
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// ChainConfig holds the JSON-RPC endpoint and signing settings.
type ChainConfig struct {
	RPCURL            string  `toml:"rpc_url"`
	PrivateKey        string  `toml:"private_key"`
	ChainID           int64   `toml:"chain_id"` // 0 asks the node
	MintGasLimit      uint64  `toml:"mint_gas_limit"`
	GasEstimateFactor float64 `toml:"gas_estimate_factor"`

	// Timeouts in seconds, poll intervals in milliseconds.
	RPCTimeout       int `toml:"rpc_timeout"`
	ReceiptTimeout   int `toml:"receipt_timeout"`
	ReceiptPollMS    int `toml:"receipt_poll_ms"`
	ReceiptPollMaxMS int `toml:"receipt_poll_max_ms"`
}

// CollectionConfig identifies the collection tokens are minted into.
type CollectionConfig struct {
	Address             string `toml:"address"` // attach instead of deploying
	Name                string `toml:"name"`
	Symbol              string `toml:"symbol"`
	Owner               string `toml:"owner"` // defaults to the admin address
	ArtifactPath        string `toml:"artifact"`
	TokenType           int64  `toml:"token_type"`
	TokenIDFormat       int64  `toml:"token_id_format"`
	ResolveOnStart      bool   `toml:"resolve_on_start"`
	WriteGlobalMetadata bool   `toml:"write_global_metadata"`
}

// PinningConfig holds Pinata settings.
type PinningConfig struct {
	APIURL     string `toml:"api_url"`
	GatewayURL string `toml:"gateway_url"`
	APIKey     string `toml:"api_key"`
	SecretKey  string `toml:"secret_api_key"`
	JWT        string `toml:"jwt"`
	CIDVersion int    `toml:"cid_version"`
	Timeout    int    `toml:"timeout"` // seconds
}

// ImageGenConfig holds image generation API settings.
type ImageGenConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	Size    string `toml:"size"`
	Quality string `toml:"quality"`
	Timeout int    `toml:"timeout"` // seconds
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool `toml:"enabled"`
	RequestsPerMin int  `toml:"requests_per_min"`
	BurstSize      int  `toml:"burst"`
	CleanupMinutes int  `toml:"cleanup_minutes"`

	// Stricter per-IP bucket for the routes that spend money or gas.
	CostlyRequestsPerMin int `toml:"costly_requests_per_min"`
	CostlyBurstSize      int `toml:"costly_burst"`
}

// SecurityConfig holds security filter settings
type SecurityConfig struct {
	FilterEnabled bool `toml:"filter_enabled"`
	MaxBodySizeMB int  `toml:"max_body_size_mb"`
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool     `toml:"trust_proxy"`
	TrustedProxies []string `toml:"trusted_proxies"` // CIDR notation
}

// CORSConfig holds cross-origin settings.
type CORSConfig struct {
	AllowedOrigins []string `toml:"allowed_origins"`
	AllowedMethods []string `toml:"allowed_methods"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         3000,
			Host:         "0.0.0.0",
			ReadTimeout:  30,
			WriteTimeout: 300,
			IdleTimeout:  120,
		},
		Storage: StorageConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "./data/mintforge.db"},
		},
		Chain: ChainConfig{
			RPCURL:            "https://rpc.l16.lukso.network",
			MintGasLimit:      500000,
			GasEstimateFactor: 1.5,
			RPCTimeout:        30,
			ReceiptTimeout:    180,
			ReceiptPollMS:     1000,
			ReceiptPollMaxMS:  5000,
		},
		Collection: CollectionConfig{
			Name:          "LeMint AI NFT Collection",
			Symbol:        "LMNFT",
			ArtifactPath:  "./artifacts/LeMintNFTCollection.json",
			TokenType:     1, // NFT
			TokenIDFormat: 0, // number
		},
		Pinning: PinningConfig{
			APIURL:     "https://api.pinata.cloud",
			GatewayURL: "https://gateway.pinata.cloud/ipfs",
			Timeout:    60,
		},
		ImageGen: ImageGenConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-image-1",
			Size:    "1024x1024",
			Quality: "low",
			Timeout: 120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Enabled:              true,
			RequestsPerMin:       300,
			BurstSize:            50,
			CleanupMinutes:       10,
			CostlyRequestsPerMin: 10,
			CostlyBurstSize:      3,
		},
		Security: SecurityConfig{
			FilterEnabled: true,
			MaxBodySizeMB: 10,
		},
		Proxy: ProxyConfig{
			TrustedProxies: []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"https://lemint.netlify.app"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		},
	}
}

// Load loads configuration from MINTFORGE_CONFIG (if set) and the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("MINTFORGE_CONFIG"))
}

// LoadFile overlays the TOML file at path (if non-empty) on the defaults, then
// applies environment variables.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" && os.Getenv("STORAGE_TYPE") == "" {
		cfg.Storage.Type = "postgres"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.ReadTimeout = getEnvInt("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvInt("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvInt("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)

	cfg.Storage.Type = getEnv("STORAGE_TYPE", cfg.Storage.Type)
	cfg.Storage.Postgres.URL = getEnv("DATABASE_URL", cfg.Storage.Postgres.URL)
	cfg.Storage.SQLite.Path = getEnv("SQLITE_PATH", cfg.Storage.SQLite.Path)

	cfg.Chain.RPCURL = getEnv("LUKSO_RPC_URL", cfg.Chain.RPCURL)
	cfg.Chain.PrivateKey = getEnv("ADMIN_PRIVATE_KEY", cfg.Chain.PrivateKey)
	cfg.Chain.ChainID = int64(getEnvInt("CHAIN_ID", int(cfg.Chain.ChainID)))
	cfg.Chain.MintGasLimit = uint64(getEnvInt("CHAIN_MINT_GAS_LIMIT", int(cfg.Chain.MintGasLimit)))
	cfg.Chain.GasEstimateFactor = getEnvFloat("CHAIN_GAS_ESTIMATE_FACTOR", cfg.Chain.GasEstimateFactor)
	cfg.Chain.RPCTimeout = getEnvInt("CHAIN_RPC_TIMEOUT", cfg.Chain.RPCTimeout)
	cfg.Chain.ReceiptTimeout = getEnvInt("CHAIN_RECEIPT_TIMEOUT", cfg.Chain.ReceiptTimeout)
	cfg.Chain.ReceiptPollMS = getEnvInt("CHAIN_RECEIPT_POLL_MS", cfg.Chain.ReceiptPollMS)
	cfg.Chain.ReceiptPollMaxMS = getEnvInt("CHAIN_RECEIPT_POLL_MAX_MS", cfg.Chain.ReceiptPollMaxMS)

	cfg.Collection.Address = getEnv("COLLECTION_ADDRESS", cfg.Collection.Address)
	cfg.Collection.Name = getEnv("COLLECTION_NAME", cfg.Collection.Name)
	cfg.Collection.Symbol = getEnv("COLLECTION_SYMBOL", cfg.Collection.Symbol)
	cfg.Collection.Owner = getEnv("COLLECTION_OWNER", cfg.Collection.Owner)
	cfg.Collection.ArtifactPath = getEnv("COLLECTION_ARTIFACT", cfg.Collection.ArtifactPath)
	cfg.Collection.TokenType = int64(getEnvInt("COLLECTION_TOKEN_TYPE", int(cfg.Collection.TokenType)))
	cfg.Collection.TokenIDFormat = int64(getEnvInt("COLLECTION_TOKEN_ID_FORMAT", int(cfg.Collection.TokenIDFormat)))
	cfg.Collection.ResolveOnStart = getEnvBool("COLLECTION_RESOLVE_ON_START", cfg.Collection.ResolveOnStart)
	cfg.Collection.WriteGlobalMetadata = getEnvBool("COLLECTION_WRITE_GLOBAL_METADATA", cfg.Collection.WriteGlobalMetadata)

	cfg.Pinning.APIURL = getEnv("PINATA_API_URL", cfg.Pinning.APIURL)
	cfg.Pinning.GatewayURL = getEnv("PINATA_GATEWAY_URL", cfg.Pinning.GatewayURL)
	cfg.Pinning.APIKey = getEnv("PINATA_API_KEY", cfg.Pinning.APIKey)
	cfg.Pinning.SecretKey = getEnv("PINATA_SECRET_API_KEY", cfg.Pinning.SecretKey)
	cfg.Pinning.JWT = getEnv("PINATA_JWT", cfg.Pinning.JWT)
	cfg.Pinning.CIDVersion = getEnvInt("PINATA_CID_VERSION", cfg.Pinning.CIDVersion)
	cfg.Pinning.Timeout = getEnvInt("PINATA_TIMEOUT", cfg.Pinning.Timeout)

	cfg.ImageGen.APIKey = getEnv("OPENAI_API_KEY", cfg.ImageGen.APIKey)
	cfg.ImageGen.BaseURL = getEnv("OPENAI_BASE_URL", cfg.ImageGen.BaseURL)
	cfg.ImageGen.Model = getEnv("OPENAI_IMAGE_MODEL", cfg.ImageGen.Model)
	cfg.ImageGen.Size = getEnv("OPENAI_IMAGE_SIZE", cfg.ImageGen.Size)
	cfg.ImageGen.Quality = getEnv("OPENAI_IMAGE_QUALITY", cfg.ImageGen.Quality)
	cfg.ImageGen.Timeout = getEnvInt("OPENAI_TIMEOUT", cfg.ImageGen.Timeout)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMin = getEnvInt("RATE_LIMIT_RPM", cfg.RateLimit.RequestsPerMin)
	cfg.RateLimit.BurstSize = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimit.BurstSize)
	cfg.RateLimit.CleanupMinutes = getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", cfg.RateLimit.CleanupMinutes)
	cfg.RateLimit.CostlyRequestsPerMin = getEnvInt("RATE_LIMIT_MINT_RPM", cfg.RateLimit.CostlyRequestsPerMin)
	cfg.RateLimit.CostlyBurstSize = getEnvInt("RATE_LIMIT_MINT_BURST", cfg.RateLimit.CostlyBurstSize)

	cfg.Security.FilterEnabled = getEnvBool("SECURITY_FILTER_ENABLED", cfg.Security.FilterEnabled)
	cfg.Security.MaxBodySizeMB = getEnvInt("SECURITY_MAX_BODY_SIZE_MB", cfg.Security.MaxBodySizeMB)

	cfg.Proxy.TrustProxy = getEnvBool("TRUST_PROXY", cfg.Proxy.TrustProxy)
	cfg.Proxy.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", cfg.Proxy.TrustedProxies)

	cfg.CORS.AllowedOrigins = getEnvStringSlice("CORS_ALLOWED_ORIGINS", cfg.CORS.AllowedOrigins)
	cfg.CORS.AllowedMethods = getEnvStringSlice("CORS_ALLOWED_METHODS", cfg.CORS.AllowedMethods)

	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Type {
	case "sqlite":
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			errs = append(errs, errors.New("postgres storage requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage type: %s", c.Storage.Type))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Server.Port))
	}
	if c.Collection.ResolveOnStart && c.Chain.PrivateKey == "" {
		errs = append(errs, errors.New("COLLECTION_RESOLVE_ON_START requires ADMIN_PRIVATE_KEY"))
	}
	if c.Pinning.CIDVersion != 0 && c.Pinning.CIDVersion != 1 {
		errs = append(errs, fmt.Errorf("invalid PINATA_CID_VERSION: %d", c.Pinning.CIDVersion))
	}
	return errors.Join(errs...)
}

// MissingSecrets lists unset credentials; the features that need them fail
// at request time.
func (c *Config) MissingSecrets() []string {
	var missing []string
	if c.Chain.PrivateKey == "" {
		missing = append(missing, "ADMIN_PRIVATE_KEY")
	}
	if c.Pinning.JWT == "" && (c.Pinning.APIKey == "" || c.Pinning.SecretKey == "") {
		missing = append(missing, "PINATA_API_KEY/PINATA_SECRET_API_KEY")
	}
	if c.ImageGen.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	return missing
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
