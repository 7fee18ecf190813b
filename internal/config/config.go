package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/novatrust/bio-gateway/internal/log"
)

// Configuration holds the project configuration
type Configuration struct {
	ServerUrl     string
	ServerPort    int
	Database      Database      `mapstructure:"Database"`
	Cache         Cache         `mapstructure:"Cache"`
	HTTPBasicAuth HTTPBasicAuth `mapstructure:"HTTPBasicAuth"`
	Log           Log           `mapstructure:"Log"`
	Provider      Provider      `mapstructure:"Provider"`
	Verification  Verification  `mapstructure:"Verification"`
	Credentials   Credentials   `mapstructure:"Credentials"`
	Notifications Notifications `mapstructure:"Notifications"`
}

// Database has the database configuration
// URL: The database connection string
type Database struct {
	URL string `mapstructure:"Url" tip:"The Datasource name locator"`
}

// Cache configurations
type Cache struct {
	RedisUrl string `mapstructure:"RedisUrl" tip:"The redis url to use as a cache"`
}

// Provider holds the remote biometric verification provider configuration
type Provider struct {
	URL             string        `mapstructure:"Url" tip:"Verification provider base url"`
	APIKey          string        `mapstructure:"ApiKey" tip:"Verification provider api key"`
	ResponseTimeout time.Duration `mapstructure:"ResponseTimeout" tip:"Per request timeout against the provider"`
}

// Verification holds the completion detection and proof validation policy
type Verification struct {
	PollInterval         time.Duration `mapstructure:"PollInterval" tip:"Interval between provider status polls"`
	PollMaxAttempts      int           `mapstructure:"PollMaxAttempts" tip:"Maximum number of status polls before an operation expires"`
	CheckStatusFrequency time.Duration `mapstructure:"CheckStatusFrequency" tip:"How often the status checker re-examines persisted pending operations"`
	MatchThreshold       float64       `mapstructure:"MatchThreshold" tip:"Minimum biometric match score accepted without manual review"`
	ConfidenceThreshold  float64       `mapstructure:"ConfidenceThreshold" tip:"Minimum provider confidence score accepted without manual review"`
	OperationTTL         time.Duration `mapstructure:"OperationTTL" tip:"Lifetime of a capture session before the provider voids it"`
}

// Credentials holds the session credential issuing configuration
type Credentials struct {
	SigningKey      string        `mapstructure:"SigningKey" tip:"HS256 signing key for access tokens"`
	Issuer          string        `mapstructure:"Issuer" tip:"Issuer claim for access tokens"`
	AccessTokenTTL  time.Duration `mapstructure:"AccessTokenTTL" tip:"Access token lifetime"`
	RefreshTokenTTL time.Duration `mapstructure:"RefreshTokenTTL" tip:"Refresh token lifetime"`
}

// Notifications holds the webhook delivery configuration
type Notifications struct {
	WebhookURL string `mapstructure:"WebhookUrl" tip:"Endpoint notified when an operation reaches a terminal state"`
}

// Log holds runtime configurations
//
// Level: The minimum log level to show on logs. Values can be
//
//	 -4: Debug
//		0: Info
//		4: Warning
//		8: Error
//	 The default log level is debug
//
// Mode: Log mode is the format of the log. It can be text or json
// 1: JSON
// 2: Text
// The default log format is JSON
type Log struct {
	Level int `mapstructure:"Level" tip:"Minimum level to log: (-4:Debug, 0:Info, 4:Warning, 8:Error)"`
	Mode  int `mapstructure:"Mode" tip:"Log format (1: JSON, 2:Structured text)"`
}

// HTTPBasicAuth configuration. Admin endpoints are protected with basic http
// auth. Here you can set the user and password to use.
type HTTPBasicAuth struct {
	User     string `mapstructure:"User" tip:"Basic auth username"`
	Password string `mapstructure:"Password" tip:"Basic auth password"`
}

// Sanitize performs some basic checks and sanitizations in the configuration.
// Returns nil if the config is acceptable, an error otherwise.
func (c *Configuration) Sanitize() error {
	sUrl, err := c.validateServerUrl()
	if err != nil {
		return fmt.Errorf("serverUrl is not a valid URL <%s>: %w", c.ServerUrl, err)
	}
	c.ServerUrl = sUrl

	if c.Provider.URL == "" {
		return fmt.Errorf("a verification provider url must be provided")
	}
	if c.Verification.MatchThreshold <= 0 || c.Verification.MatchThreshold > 1 {
		return fmt.Errorf("verification match threshold must be in (0, 1]")
	}
	if c.Verification.ConfidenceThreshold <= 0 || c.Verification.ConfidenceThreshold > 1 {
		return fmt.Errorf("verification confidence threshold must be in (0, 1]")
	}
	if c.Credentials.SigningKey == "" {
		return fmt.Errorf("a credential signing key must be provided")
	}

	return nil
}

func (c *Configuration) validateServerUrl() (string, error) {
	sUrl, err := url.ParseRequestURI(c.ServerUrl)
	if err != nil {
		return c.ServerUrl, err
	}
	if sUrl.Scheme == "" {
		return c.ServerUrl, fmt.Errorf("server URL must be an absolute URL")
	}
	sUrl.RawQuery = ""
	return strings.Trim(strings.Trim(sUrl.String(), "/"), "?"), nil
}

// Load loads the configuration from a file
func Load(fileName string) (*Configuration, error) {
	bindEnv()
	pathFlag := viper.GetString("config")
	if _, err := os.Stat(pathFlag); err == nil {
		ext := filepath.Ext(pathFlag)
		if len(ext) > 1 {
			ext = ext[1:]
		}
		name := strings.Split(filepath.Base(pathFlag), ".")[0]
		viper.AddConfigPath(".")
		viper.SetConfigName(name)
		viper.SetConfigType(ext)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("toml")
		if fileName == "" {
			viper.SetConfigName("config")
		} else {
			viper.SetConfigName(fileName)
		}
	}

	config := &Configuration{
		Log: Log{
			Level: log.LevelDebug,
			Mode:  log.OutputText,
		},
		Verification: Verification{
			PollInterval:         2 * time.Second,
			PollMaxAttempts:      120,
			CheckStatusFrequency: time.Minute,
			MatchThreshold:       0.80,
			ConfidenceThreshold:  0.85,
			OperationTTL:         10 * time.Minute,
		},
		Provider: Provider{
			ResponseTimeout: 10 * time.Second,
		},
		Credentials: Credentials{
			Issuer:          "bio-gateway",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 30 * 24 * time.Hour,
		},
	}
	ctx := context.Background()
	if err := viper.ReadInConfig(); err != nil {
		log.Info(ctx, "config file not found, relying on env vars", "err", err)
	}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}
	checkEnvVars(ctx, config)
	return config, nil
}

func bindEnv() {
	viper.SetEnvPrefix("BIOGATEWAY")
	_ = viper.BindEnv("ServerUrl", "BIOGATEWAY_SERVER_URL")
	_ = viper.BindEnv("ServerPort", "BIOGATEWAY_SERVER_PORT")

	_ = viper.BindEnv("Database.Url", "BIOGATEWAY_DATABASE_URL")
	_ = viper.BindEnv("Cache.RedisUrl", "BIOGATEWAY_REDIS_URL")

	_ = viper.BindEnv("Log.Level", "BIOGATEWAY_LOG_LEVEL")
	_ = viper.BindEnv("Log.Mode", "BIOGATEWAY_LOG_MODE")

	_ = viper.BindEnv("HTTPBasicAuth.User", "BIOGATEWAY_API_AUTH_USER")
	_ = viper.BindEnv("HTTPBasicAuth.Password", "BIOGATEWAY_API_AUTH_PASSWORD")

	_ = viper.BindEnv("Provider.Url", "BIOGATEWAY_PROVIDER_URL")
	_ = viper.BindEnv("Provider.ApiKey", "BIOGATEWAY_PROVIDER_API_KEY")
	_ = viper.BindEnv("Provider.ResponseTimeout", "BIOGATEWAY_PROVIDER_RESPONSE_TIMEOUT")

	_ = viper.BindEnv("Verification.PollInterval", "BIOGATEWAY_VERIFICATION_POLL_INTERVAL")
	_ = viper.BindEnv("Verification.PollMaxAttempts", "BIOGATEWAY_VERIFICATION_POLL_MAX_ATTEMPTS")
	_ = viper.BindEnv("Verification.CheckStatusFrequency", "BIOGATEWAY_VERIFICATION_CHECK_STATUS_FREQUENCY")
	_ = viper.BindEnv("Verification.MatchThreshold", "BIOGATEWAY_VERIFICATION_MATCH_THRESHOLD")
	_ = viper.BindEnv("Verification.ConfidenceThreshold", "BIOGATEWAY_VERIFICATION_CONFIDENCE_THRESHOLD")
	_ = viper.BindEnv("Verification.OperationTTL", "BIOGATEWAY_VERIFICATION_OPERATION_TTL")

	_ = viper.BindEnv("Credentials.SigningKey", "BIOGATEWAY_CREDENTIALS_SIGNING_KEY")
	_ = viper.BindEnv("Credentials.Issuer", "BIOGATEWAY_CREDENTIALS_ISSUER")
	_ = viper.BindEnv("Credentials.AccessTokenTTL", "BIOGATEWAY_CREDENTIALS_ACCESS_TOKEN_TTL")
	_ = viper.BindEnv("Credentials.RefreshTokenTTL", "BIOGATEWAY_CREDENTIALS_REFRESH_TOKEN_TTL")

	_ = viper.BindEnv("Notifications.WebhookUrl", "BIOGATEWAY_NOTIFICATIONS_WEBHOOK_URL")

	viper.AutomaticEnv()
}

func checkEnvVars(ctx context.Context, cfg *Configuration) {
	if cfg.ServerUrl == "" {
		log.Info(ctx, "BIOGATEWAY_SERVER_URL value is missing")
	}

	if cfg.ServerPort == 0 {
		log.Info(ctx, "BIOGATEWAY_SERVER_PORT value is missing")
	}

	if cfg.Database.URL == "" {
		log.Info(ctx, "BIOGATEWAY_DATABASE_URL value is missing")
	}

	if cfg.Cache.RedisUrl == "" {
		log.Info(ctx, "BIOGATEWAY_REDIS_URL value is missing")
	}

	if cfg.Provider.URL == "" {
		log.Info(ctx, "BIOGATEWAY_PROVIDER_URL value is missing")
	}

	if cfg.Credentials.SigningKey == "" {
		log.Info(ctx, "BIOGATEWAY_CREDENTIALS_SIGNING_KEY value is missing")
	}
}
