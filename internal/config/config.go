package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIServerConfig 保存 API 服务器的配置。
type APIServerConfig struct {
	Host         string        `mapstructure:"HOST"`
	Port         string        `mapstructure:"PORT"`
	ReadTimeout  time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"WRITE_TIMEOUT"`
	CORS         CORSConfig    `mapstructure:"CORS"`
}

// CORSConfig holds configuration for CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `mapstructure:"EXPOSED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// KafkaConfig holds configuration for Kafka.
type KafkaConfig struct {
	Brokers          []string `mapstructure:"BROKERS"`
	ClientID         string   `mapstructure:"CLIENT_ID"`
	FriendEventTopic string   `mapstructure:"FRIEND_EVENT_TOPIC"` // 好友协议产生的通知事件
	ConsumerGroup    string   `mapstructure:"CONSUMER_GROUP"`
	Protocol         string   `mapstructure:"PROTOCOL"`
}

// DatabaseConfig holds configuration for the database.
type DatabaseConfig struct {
	Type     string `mapstructure:"TYPE"`
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	User     string `mapstructure:"USER"`
	Password string `mapstructure:"PASSWORD"`
	DBName   string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"SSL_MODE"`
}

// AuthConfig holds configuration for authentication (JWT).
type AuthConfig struct {
	JWTSecretKey string        `mapstructure:"JWT_SECRET_KEY"`
	JWTExpiry    time.Duration `mapstructure:"JWT_EXPIRY"`
}

// SMTPConfig 保存通知邮件发送的配置。
type SMTPConfig struct {
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	Username string `mapstructure:"USERNAME"`
	Password string `mapstructure:"PASSWORD"`
	From     string `mapstructure:"FROM"`
	Enabled  bool   `mapstructure:"ENABLED"`
}

// WebSocketConfig holds configuration for WebSocket connections.
type WebSocketConfig struct {
	WriteWaitSeconds    int `mapstructure:"WRITE_WAIT_SECONDS"`
	PongWaitSeconds     int `mapstructure:"PONG_WAIT_SECONDS"`
	PingPeriodSeconds   int `mapstructure:"PING_PERIOD_SECONDS"`
	MaxMessageSizeBytes int `mapstructure:"MAX_MESSAGE_SIZE_BYTES"`
}

// Config holds all configuration for the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName     string          `mapstructure:"APP_NAME"`
	AppVersion  string          `mapstructure:"APP_VERSION"`
	LogLevel    string          `mapstructure:"LOG_LEVEL"`
	FrontendURL string          `mapstructure:"FRONTEND_URL"` // 通知邮件中的跳转链接
	APIServer   APIServerConfig `mapstructure:"API_SERVER"`
	Kafka       KafkaConfig     `mapstructure:"KAFKA"`
	Database    DatabaseConfig  `mapstructure:"DATABASE"`
	Auth        AuthConfig      `mapstructure:"AUTH"`
	Redis       RedisConfig     `mapstructure:"REDIS"`
	SMTP        SMTPConfig      `mapstructure:"SMTP"`
	WebSocket   WebSocketConfig `mapstructure:"WEBSOCKET"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()

	v.SetDefault("APP_NAME", "Dream-Journal")
	v.SetDefault("APP_VERSION", "0.0.1")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("FRONTEND_URL", "http://localhost:3000")

	// APIServer Defaults
	v.SetDefault("API_SERVER.HOST", "0.0.0.0")
	v.SetDefault("API_SERVER.PORT", "8080")
	v.SetDefault("API_SERVER.READ_TIMEOUT", 30*time.Second)
	v.SetDefault("API_SERVER.WRITE_TIMEOUT", 30*time.Second)
	v.SetDefault("API_SERVER.CORS.ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("API_SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"})
	v.SetDefault("API_SERVER.CORS.EXPOSED_HEADERS", []string{"Content-Length"})
	v.SetDefault("API_SERVER.CORS.ALLOW_CREDENTIALS", true)
	v.SetDefault("API_SERVER.CORS.MAX_AGE", 300)

	// Kafka Defaults
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "dream-journal-client")
	v.SetDefault("KAFKA.FRIEND_EVENT_TOPIC", "dj-friend-events")
	v.SetDefault("KAFKA.CONSUMER_GROUP", "dj-notification-group")

	// Database Defaults
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "dream_journal_db")
	v.SetDefault("DATABASE.SSL_MODE", "disable")

	// Auth Defaults
	v.SetDefault("AUTH.JWT_SECRET_KEY", "a_very_secret_key_that_should_be_changed")
	v.SetDefault("AUTH.JWT_EXPIRY", 7*24*time.Hour)

	// Redis Defaults
	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	// SMTP Defaults
	v.SetDefault("SMTP.HOST", "smtp.gmail.com")
	v.SetDefault("SMTP.PORT", 587)
	v.SetDefault("SMTP.USERNAME", "")
	v.SetDefault("SMTP.PASSWORD", "")
	v.SetDefault("SMTP.FROM", "Dream Journal <noreply@dreamjournal.local>")
	v.SetDefault("SMTP.ENABLED", false)

	// WebSocket Defaults
	v.SetDefault("WEBSOCKET.WRITE_WAIT_SECONDS", 10)
	v.SetDefault("WEBSOCKET.PONG_WAIT_SECONDS", 60)
	v.SetDefault("WEBSOCKET.PING_PERIOD_SECONDS", 54) // (60 * 9) / 10
	v.SetDefault("WEBSOCKET.MAX_MESSAGE_SIZE_BYTES", 512)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return
		}
		// 找不到配置文件时使用默认值即可
	}

	err = v.Unmarshal(&config)
	return
}
