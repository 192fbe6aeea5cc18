package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	AI         AIConfig         `yaml:"ai"`
	JWT        JWTConfig        `yaml:"jwt"`
	Log        LogConfig        `yaml:"log"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Security   SecurityConfig   `yaml:"security"`
	Automation AutomationConfig `yaml:"automation"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type AIConfig struct {
	OpenAI OpenAIConfig `yaml:"openai"`
}

type OpenAIConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type JWTConfig struct {
	Secret    string        `yaml:"secret"`
	ExpiresIn time.Duration `yaml:"expires_in"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // json, text
	Output     string `yaml:"output"` // stdout, file, both
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"`    // MB
	MaxAge     int    `yaml:"max_age"`     // days
	MaxBackups int    `yaml:"max_backups"` // number of backup files
	Compress   bool   `yaml:"compress"`    // compress backup files
}

type MonitoringConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MetricsPath string        `yaml:"metrics_path"`
	Tracing     TracingConfig `yaml:"tracing"`
}

// TracingConfig OpenTelemetry 追踪配置
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`     // OTLP gRPC 端点，例如 http://otel-collector:4317
	Insecure    bool    `yaml:"insecure"`     // 是否使用明文（本地/开发）
	SampleRatio float64 `yaml:"sample_ratio"` // 采样率 0.0~1.0
	ServiceName string  `yaml:"service_name"` // 自定义服务名，缺省使用 "craftcrm"
}

type SecurityConfig struct {
	CORS         CORSConfig         `yaml:"cors"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting"`
	RBAC         RBACConfig         `yaml:"rbac"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

type RateLimitingConfig struct {
	Enabled           bool                  `yaml:"enabled"`
	RequestsPerMinute int                   `yaml:"requests_per_minute"`
	Burst             int                   `yaml:"burst"`
	KeyHeader         string                `yaml:"key_header"`
	WhitelistIPs      []string              `yaml:"whitelist_ips"`
	WhitelistKeys     []string              `yaml:"whitelist_keys"`
	Paths             []PathRateLimitConfig `yaml:"paths"`
}

type PathRateLimitConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Prefix            string `yaml:"prefix"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Burst             int    `yaml:"burst"`
}

// RBACConfig 将角色映射到权限列表（如 "records.read", "automations.*"）。
type RBACConfig struct {
	Enabled bool                `yaml:"enabled"`
	Roles   map[string][]string `yaml:"roles"`
}

// AutomationConfig 自动化执行相关设置。
type AutomationConfig struct {
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	LogRetention   int           `yaml:"log_retention"` // days, 0 = keep forever
}

func Load() *Config {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}
	return &config
}

// GetDefaultConfig 返回默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "postgres",
			Password:        "password",
			Name:            "craftcrm",
			MaxOpenConns:    100,
			MaxIdleConns:    10,
			ConnMaxLifetime: 3600 * time.Second,
		},
		AI: AIConfig{
			OpenAI: OpenAIConfig{
				BaseURL:     "https://api.openai.com/v1",
				Model:       "gpt-4o-mini",
				Temperature: 0.7,
				MaxTokens:   4000,
				Timeout:     60 * time.Second,
			},
		},
		JWT: JWTConfig{
			Secret:    "default-secret-key",
			ExpiresIn: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			Output:     "both",
			FilePath:   "./logs/craftcrm.log",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
			Compress:   true,
		},
		Monitoring: MonitoringConfig{
			Enabled:     true,
			MetricsPath: "/metrics",
			Tracing: TracingConfig{
				Enabled:     false,
				Endpoint:    "http://localhost:4317",
				Insecure:    true,
				SampleRatio: 0.1,
				ServiceName: "craftcrm",
			},
		},
		Security: SecurityConfig{
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
				AllowedHeaders: []string{"*"},
			},
			RateLimiting: RateLimitingConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             10,
			},
		},
		Automation: AutomationConfig{
			WebhookTimeout: 30 * time.Second,
		},
	}
}
