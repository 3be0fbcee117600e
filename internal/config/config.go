package config

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/gregtusar/driftarb/pkg/secrets"
)

type Config struct {
	Mode      string          `mapstructure:"mode"`
	Server    ServerConfig    `mapstructure:"server"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Spot      SpotConfig      `mapstructure:"spot"`
	Perp      PerpConfig      `mapstructure:"perp"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	GCP       GCPConfig       `mapstructure:"gcp"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type TradingConfig struct {
	Pairs           []string `mapstructure:"pairs"`
	SpreadThreshold float64  `mapstructure:"spread_threshold"`
	TradeSizeUSDC   float64  `mapstructure:"trade_size_usdc"`
	ReactiveMode    bool     `mapstructure:"reactive_mode"`
	PollInterval    int      `mapstructure:"poll_interval"`
}

type SpotConfig struct {
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
	Testnet   bool   `mapstructure:"testnet"`
}

type PerpConfig struct {
	GatewayURL    string `mapstructure:"gateway_url"`
	KeyName       string `mapstructure:"key_name"`
	PrivateKeyPEM string `mapstructure:"private_key_pem"`
}

type WebSocketConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	ReconnectDelay int  `mapstructure:"reconnect_delay"`
	MaxReconnects  int  `mapstructure:"max_reconnects"`
}

type DiscordConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type GCPConfig struct {
	ProjectID   string              `mapstructure:"project_id"`
	UseSecrets  bool                `mapstructure:"use_secrets"`
	SecretNames secrets.SecretNames `mapstructure:"secret_names"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/driftarb")
	}

	// Read environment variables
	v.SetEnvPrefix("ARB")
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Override with environment variables if set
	overrideFromEnv(&config)

	// Load secrets from GCP if enabled
	if config.GCP.UseSecrets && config.GCP.ProjectID != "" {
		ctx := context.Background()
		logger := logrus.New()
		if err := loadSecretsFromGCP(ctx, &config, logger); err != nil {
			return nil, fmt.Errorf("error loading secrets from GCP: %w", err)
		}
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "SIMULATION")

	// Server defaults
	v.SetDefault("server.port", 8080)

	// Trading defaults
	v.SetDefault("trading.pairs", []string{"SOL/USDC"})
	v.SetDefault("trading.spread_threshold", 0.007)
	v.SetDefault("trading.trade_size_usdc", 100.0)
	v.SetDefault("trading.reactive_mode", false)
	v.SetDefault("trading.poll_interval", 5)

	// Venue defaults
	v.SetDefault("spot.testnet", true)
	v.SetDefault("perp.gateway_url", "")

	// WebSocket defaults
	v.SetDefault("websocket.enabled", true)
	v.SetDefault("websocket.reconnect_delay", 5)
	v.SetDefault("websocket.max_reconnects", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// GCP defaults
	v.SetDefault("gcp.use_secrets", false)
	v.SetDefault("gcp.project_id", "")

	// Secret name defaults
	secretNames := secrets.DefaultSecretNames()
	v.SetDefault("gcp.secret_names.spot_api_key", secretNames.SpotAPIKey)
	v.SetDefault("gcp.secret_names.spot_api_secret", secretNames.SpotAPISecret)
	v.SetDefault("gcp.secret_names.perp_key_name", secretNames.PerpKeyName)
	v.SetDefault("gcp.secret_names.perp_private_key", secretNames.PerpPrivateKey)
	v.SetDefault("gcp.secret_names.discord_webhook_url", secretNames.DiscordWebhookURL)
}

func overrideFromEnv(config *Config) {
	if mode := os.Getenv("MODE"); mode != "" {
		config.Mode = mode
	}

	// Venue credentials from environment
	if apiKey := os.Getenv("BINANCE_TESTNET_API_KEY"); apiKey != "" {
		config.Spot.APIKey = apiKey
	}
	if apiSecret := os.Getenv("BINANCE_TESTNET_SECRET"); apiSecret != "" {
		config.Spot.APISecret = apiSecret
	}
	if keyName := os.Getenv("DRIFT_GATEWAY_KEY_NAME"); keyName != "" {
		config.Perp.KeyName = keyName
	}
	if privateKey := os.Getenv("DRIFT_GATEWAY_PRIVATE_KEY"); privateKey != "" {
		config.Perp.PrivateKeyPEM = privateKey
	}

	// Alerting
	if webhookURL := os.Getenv("DISCORD_WEBHOOK_URL"); webhookURL != "" {
		config.Discord.WebhookURL = webhookURL
	}

	// Trading overrides
	if threshold := os.Getenv("SPREAD_THRESHOLD"); threshold != "" {
		if parsed, err := strconv.ParseFloat(threshold, 64); err == nil {
			config.Trading.SpreadThreshold = parsed
		}
	}
	if size := os.Getenv("TRADE_SIZE_USDC"); size != "" {
		if parsed, err := strconv.ParseFloat(size, 64); err == nil {
			config.Trading.TradeSizeUSDC = parsed
		}
	}
	if reactive := os.Getenv("ENABLE_TESTNET_TRADING"); reactive != "" {
		config.Trading.ReactiveMode = reactive == "true"
	}

	// GCP configuration from environment
	if projectID := os.Getenv("GCP_PROJECT_ID"); projectID != "" {
		config.GCP.ProjectID = projectID
	}
	if useSecrets := os.Getenv("GCP_USE_SECRETS"); useSecrets == "true" {
		config.GCP.UseSecrets = true
	}
}

func validate(config *Config) error {
	if len(config.Trading.Pairs) == 0 {
		return fmt.Errorf("no trading pairs configured")
	}
	if config.Trading.TradeSizeUSDC <= 0 {
		return fmt.Errorf("trade size must be positive, got %f", config.Trading.TradeSizeUSDC)
	}
	return nil
}

func loadSecretsFromGCP(ctx context.Context, config *Config, logger *logrus.Logger) error {
	secretManager, err := secrets.NewGCPSecretManager(ctx, config.GCP.ProjectID, logger)
	if err != nil {
		return fmt.Errorf("failed to create secret manager: %w", err)
	}
	defer secretManager.Close()

	// Only load secrets if they're not already set
	if config.Spot.APIKey == "" {
		config.Spot.APIKey = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.SpotAPIKey, "")
	}
	if config.Spot.APISecret == "" {
		config.Spot.APISecret = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.SpotAPISecret, "")
	}

	if config.Perp.KeyName == "" {
		config.Perp.KeyName = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.PerpKeyName, "")
	}
	if config.Perp.PrivateKeyPEM == "" {
		config.Perp.PrivateKeyPEM = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.PerpPrivateKey, "")
	}

	if config.Discord.WebhookURL == "" {
		config.Discord.WebhookURL = secretManager.GetSecretWithDefault(ctx,
			config.GCP.SecretNames.DiscordWebhookURL, "")
	}

	logger.Info("Successfully loaded secrets from GCP Secret Manager")
	return nil
}
