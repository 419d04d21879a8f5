package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrConfiguration is matched by every error reporting missing or invalid configuration.
var ErrConfiguration = errors.New("configuration error")

// Config holds all configuration for the application.
type Config struct {
	Binance  Binance  `mapstructure:"binance"`
	Mexc     Mexc     `mapstructure:"mexc"`
	Jupiter  Jupiter  `mapstructure:"jupiter"`
	Solana   Solana   `mapstructure:"solana"`
	Lock     Lock     `mapstructure:"lock"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Trader   Trader   `mapstructure:"trader"`
	Database Database `mapstructure:"database"`
}

// Binance holds the configuration for the Binance US API.
type Binance struct {
	ApiKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
}

// Mexc holds the configuration for the MEXC spot API.
type Mexc struct {
	ApiKey         string  `mapstructure:"api_key"`
	SecretKey      string  `mapstructure:"secret_key"`
	BaseURL        string  `mapstructure:"base_url"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Jupiter holds the endpoints of the Jupiter aggregator.
type Jupiter struct {
	PriceURL    string  `mapstructure:"price_url"`
	SwapURL     string  `mapstructure:"swap_url"`
	SlippageBps int     `mapstructure:"slippage_bps"`
	RateLimit   float64 `mapstructure:"rate_limit"`
}

// Solana holds the wallet and RPC settings used for DEX trades.
type Solana struct {
	RPCEndpoint    string        `mapstructure:"rpc_endpoint"`
	PrivateKey     string        `mapstructure:"private_key"`
	USDTMint       string        `mapstructure:"usdt_mint"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
}

// Lock configures the optional per-instrument signal lock.
// An empty RedisAddr disables locking.
type Lock struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
	Wait          time.Duration `mapstructure:"wait"`
}

// Server holds the configuration for the dashboard server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Trader holds the configuration for the webhook server.
type Trader struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// Database holds the configuration for the database.
type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"binance.api_key":        "",
	"binance.secret_key":     "",
	"binance.base_url":       "https://api.binance.us",
	"mexc.api_key":           "",
	"mexc.secret_key":        "",
	"mexc.base_url":          "https://api.mexc.com/api/v3",
	"mexc.rate_limit":        10,
	"mexc.rate_limit_burst":  5,
	"jupiter.price_url":      "https://price.jup.ag/v4/price",
	"jupiter.swap_url":       "https://quote-api.jup.ag/v6",
	"jupiter.slippage_bps":   100,
	"jupiter.rate_limit":     10,
	"solana.rpc_endpoint":    "",
	"solana.private_key":     "",
	"solana.usdt_mint":       "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB",
	"solana.confirm_timeout": "60s",
	"lock.redis_addr":        "",
	"lock.redis_password":    "",
	"lock.redis_db":          0,
	"lock.ttl":               "30s",
	"lock.wait":              "10s",
	"logger.level":           "info",
	"logger.format":          "console",
	"server.port":            8081,
	"trader.port":            8080,
	"trader.request_timeout": "45s",
	"database.driver":        "sqlite",
	"database.dsn":           "signal-relay.db",
}

// LoadConfig reads configuration from an optional config.yml in path, a .env
// file and environment variables. Environment variables win.
func LoadConfig(path string) (config Config, err error) {
	// .env is optional; a missing file is not an error.
	if envErr := godotenv.Load(); envErr != nil && !os.IsNotExist(envErr) {
		return config, fmt.Errorf("load .env: %w", envErr)
	}

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("read config: %w", err)
		}
		err = nil
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decode config: %w", err)
	}
	return config, nil
}

// MissingKeysError lists required configuration keys that are empty.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Keys, ", "))
}

func (e *MissingKeysError) Unwrap() error { return ErrConfiguration }

func requireKeys(pairs ...string) error {
	var missing []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			missing = append(missing, pairs[i])
		}
	}
	if len(missing) > 0 {
		return &MissingKeysError{Keys: missing}
	}
	return nil
}

// RequireDatabase checks the keys every surface touching the journal needs.
func (c *Config) RequireDatabase() error {
	return requireKeys("database.driver", c.Database.Driver, "database.dsn", c.Database.DSN)
}

// RequireBinance checks the keys the Binance US handler needs.
func (c *Config) RequireBinance() error {
	return requireKeys(
		"database.dsn", c.Database.DSN,
		"binance.api_key", c.Binance.ApiKey,
		"binance.secret_key", c.Binance.SecretKey,
	)
}

// RequireMexc checks the keys the MEXC handler needs.
func (c *Config) RequireMexc() error {
	return requireKeys(
		"database.dsn", c.Database.DSN,
		"mexc.api_key", c.Mexc.ApiKey,
		"mexc.secret_key", c.Mexc.SecretKey,
	)
}

// RequireSolana checks the keys the Jupiter handler needs.
func (c *Config) RequireSolana() error {
	return requireKeys(
		"database.dsn", c.Database.DSN,
		"solana.rpc_endpoint", c.Solana.RPCEndpoint,
		"solana.private_key", c.Solana.PrivateKey,
		"solana.usdt_mint", c.Solana.USDTMint,
	)
}
