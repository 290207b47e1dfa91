package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the chat store server.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	AllowOrigin            string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	AMQPURL                string
	AMQPExchange           string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	LocalUploadDir         string
	PublicBaseURL          string
	UploadMaxSizeMB        int
	ChatChannelBase        string
	SendRateLimit          int
	SendRateWindow         time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// ClientConfig holds settings for the terminal chat client.
type ClientConfig struct {
	BaseURL           string
	Token             string
	JWTSecret         string
	UserID            string
	UserName          string
	MarkerPath        string
	RequestTimeout    time.Duration
	RecordMaxDuration time.Duration
	RecordTick        time.Duration
}

func newViper(prefix string) *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		raw = fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// Load reads server configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	v := newViper("TRAILMATE")

	v.SetDefault("app.name", "Trailmate Chat")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cors.allow_origin", "*")
	v.SetDefault("database.url", "sqlite://trailmate.db")
	v.SetDefault("amqp.exchange", "trailmate.events")
	v.SetDefault("cloudinary.folder", "trailmate/chat")
	v.SetDefault("upload.dir", "uploads")
	v.SetDefault("upload.max_size_mb", 20)
	v.SetDefault("chat.channel_base", "trailmate")
	v.SetDefault("chat.send_rate_limit", 30)
	v.SetDefault("chat.send_rate_window", "1m")

	window, err := parseDuration(v, "chat.send_rate_window", "1m")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		AllowOrigin:            v.GetString("cors.allow_origin"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		AMQPURL:                v.GetString("amqp.url"),
		AMQPExchange:           v.GetString("amqp.exchange"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		LocalUploadDir:         v.GetString("upload.dir"),
		PublicBaseURL:          strings.TrimRight(v.GetString("public.base_url"), "/"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		ChatChannelBase:        v.GetString("chat.channel_base"),
		SendRateLimit:          v.GetInt("chat.send_rate_limit"),
		SendRateWindow:         window,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 20
	}

	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://localhost" + cfg.HTTPAddress()
	}

	return cfg, nil
}

// LoadClient reads terminal client configuration. Either a token or a jwt
// secret plus user id must be present.
func LoadClient() (ClientConfig, error) {
	v := newViper("TRAILMATE_CLIENT")

	v.SetDefault("base_url", "http://localhost:8080/api/v1")
	v.SetDefault("marker_path", ".trailmate/markers")
	v.SetDefault("request_timeout", "15s")
	v.SetDefault("record.max_duration", "30s")
	v.SetDefault("record.tick", "1s")

	timeout, err := parseDuration(v, "request_timeout", "15s")
	if err != nil {
		return ClientConfig{}, err
	}
	maxDuration, err := parseDuration(v, "record.max_duration", "30s")
	if err != nil {
		return ClientConfig{}, err
	}
	tick, err := parseDuration(v, "record.tick", "1s")
	if err != nil {
		return ClientConfig{}, err
	}

	cfg := ClientConfig{
		BaseURL:           strings.TrimRight(v.GetString("base_url"), "/"),
		Token:             v.GetString("token"),
		JWTSecret:         v.GetString("jwt_secret"),
		UserID:            v.GetString("user_id"),
		UserName:          v.GetString("user_name"),
		MarkerPath:        v.GetString("marker_path"),
		RequestTimeout:    timeout,
		RecordMaxDuration: maxDuration,
		RecordTick:        tick,
	}

	if cfg.Token == "" && (cfg.JWTSecret == "" || cfg.UserID == "") {
		return ClientConfig{}, fmt.Errorf("client needs a token or a jwt secret with user id")
	}

	return cfg, nil
}
