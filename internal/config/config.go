package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                  string
	AppEnv                   string
	AppPort                  string
	DatabaseURL              string
	RedisURL                 string
	NATSURL                  string
	JWTSecret                string
	JWTTTL                   time.Duration
	MessagePollInterval      time.Duration
	ConversationPollInterval time.Duration
	ChannelBase              string
	MessagesPerMinute        int
	SignInsPerMinute         int
	CORSAllowOrigins         string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("SKILLSWAP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "SkillSwap API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("jwt.ttl", "24h")
	v.SetDefault("chat.message_poll_interval", "3s")
	v.SetDefault("chat.conversation_poll_interval", "5s")
	v.SetDefault("chat.channel_base", "skillswap")
	v.SetDefault("rate_limit.messages_per_minute", 60)
	v.SetDefault("rate_limit.sign_ins_per_minute", 10)
	v.SetDefault("cors.allow_origins", "*")

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	jwtTTL, err := parseDuration(v, "jwt.ttl")
	if err != nil {
		return Config{}, err
	}
	messagePoll, err := parseDuration(v, "chat.message_poll_interval")
	if err != nil {
		return Config{}, err
	}
	conversationPoll, err := parseDuration(v, "chat.conversation_poll_interval")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                  v.GetString("app.name"),
		AppEnv:                   v.GetString("app.env"),
		AppPort:                  v.GetString("app.port"),
		DatabaseURL:              v.GetString("database.url"),
		RedisURL:                 v.GetString("redis.url"),
		NATSURL:                  v.GetString("nats.url"),
		JWTSecret:                v.GetString("jwt.secret"),
		JWTTTL:                   jwtTTL,
		MessagePollInterval:      messagePoll,
		ConversationPollInterval: conversationPoll,
		ChannelBase:              v.GetString("chat.channel_base"),
		MessagesPerMinute:        v.GetInt("rate_limit.messages_per_minute"),
		SignInsPerMinute:         v.GetInt("rate_limit.sign_ins_per_minute"),
		CORSAllowOrigins:         v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.MessagePollInterval >= cfg.ConversationPollInterval {
		return Config{}, fmt.Errorf("message poll interval %s must be shorter than conversation poll interval %s", cfg.MessagePollInterval, cfg.ConversationPollInterval)
	}

	if cfg.MessagesPerMinute <= 0 {
		cfg.MessagesPerMinute = 60
	}
	if cfg.SignInsPerMinute <= 0 {
		cfg.SignInsPerMinute = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	value, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return value, nil
}
