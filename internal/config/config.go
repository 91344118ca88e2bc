package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries every tunable the server needs. Values are resolved
// with the precedence: defaults, then environment variables, then an
// optional JSON config file.
type Config struct {
	Storage   StorageConfig
	HTTP      HTTPConfig
	WebSocket WebSocketConfig
	Chat      ChatConfig
}

type StorageConfig struct {
	Backend       string // "sqlite" or "redis"
	Path          string // sqlite database file
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Timeout       time.Duration
}

type HTTPConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type WebSocketConfig struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	SendBuffer   int
}

type ChatConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: "sqlite",
			Path:    "./liveclass.db",
			Timeout: 5 * time.Second,
		},
		HTTP: HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			SendBuffer:   100,
		},
		Chat: ChatConfig{
			RateLimit:  100,
			RateWindow: time.Minute,
		},
	}
}

// LoadFromEnv overrides fields from LIVECLASS_* environment variables.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("LIVECLASS_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("LIVECLASS_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("LIVECLASS_REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv("LIVECLASS_REDIS_PASSWORD"); v != "" {
		c.Storage.RedisPassword = v
	}
	if v := os.Getenv("LIVECLASS_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Storage.RedisDB = n
		}
	}
	if v := os.Getenv("LIVECLASS_HOST"); v != "" {
		c.HTTP.Host = v
	}
	if v := os.Getenv("LIVECLASS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.HTTP.Port = n
		}
	}
	if v := os.Getenv("LIVECLASS_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.WebSocket.PingInterval = d
		}
	}
	if v := os.Getenv("LIVECLASS_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.WebSocket.ReadTimeout = d
		}
	}
	if v := os.Getenv("LIVECLASS_SEND_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WebSocket.SendBuffer = n
		}
	}
	if v := os.Getenv("LIVECLASS_CHAT_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chat.RateLimit = n
		}
	}
	if v := os.Getenv("LIVECLASS_CHAT_RATE_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Chat.RateWindow = d
		}
	}
}

// ConfigFile mirrors Config with JSON tags and pointer fields so absent
// keys leave the existing value untouched.
type ConfigFile struct {
	Storage   *StorageConfigFile   `json:"storage,omitempty"`
	HTTP      *HTTPConfigFile      `json:"http,omitempty"`
	WebSocket *WebSocketConfigFile `json:"websocket,omitempty"`
	Chat      *ChatConfigFile      `json:"chat,omitempty"`
}

type StorageConfigFile struct {
	Backend       *string `json:"backend,omitempty"`
	Path          *string `json:"path,omitempty"`
	RedisAddr     *string `json:"redis_addr,omitempty"`
	RedisPassword *string `json:"redis_password,omitempty"`
	RedisDB       *int    `json:"redis_db,omitempty"`
	TimeoutMS     *int    `json:"timeout_ms,omitempty"`
}

type HTTPConfigFile struct {
	Host           *string `json:"host,omitempty"`
	Port           *int    `json:"port,omitempty"`
	ReadTimeoutMS  *int    `json:"read_timeout_ms,omitempty"`
	WriteTimeoutMS *int    `json:"write_timeout_ms,omitempty"`
}

type WebSocketConfigFile struct {
	PingIntervalMS *int `json:"ping_interval_ms,omitempty"`
	ReadTimeoutMS  *int `json:"read_timeout_ms,omitempty"`
	SendBuffer     *int `json:"send_buffer,omitempty"`
}

type ChatConfigFile struct {
	RateLimit    *int `json:"rate_limit,omitempty"`
	RateWindowMS *int `json:"rate_window_ms,omitempty"`
}

// LoadFromFile applies settings from a JSON config file on top of the
// current values.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file ConfigFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if file.Storage != nil {
		applyString(&c.Storage.Backend, file.Storage.Backend)
		applyString(&c.Storage.Path, file.Storage.Path)
		applyString(&c.Storage.RedisAddr, file.Storage.RedisAddr)
		applyString(&c.Storage.RedisPassword, file.Storage.RedisPassword)
		applyInt(&c.Storage.RedisDB, file.Storage.RedisDB)
		applyDurationMS(&c.Storage.Timeout, file.Storage.TimeoutMS)
	}
	if file.HTTP != nil {
		applyString(&c.HTTP.Host, file.HTTP.Host)
		applyInt(&c.HTTP.Port, file.HTTP.Port)
		applyDurationMS(&c.HTTP.ReadTimeout, file.HTTP.ReadTimeoutMS)
		applyDurationMS(&c.HTTP.WriteTimeout, file.HTTP.WriteTimeoutMS)
	}
	if file.WebSocket != nil {
		applyDurationMS(&c.WebSocket.PingInterval, file.WebSocket.PingIntervalMS)
		applyDurationMS(&c.WebSocket.ReadTimeout, file.WebSocket.ReadTimeoutMS)
		applyInt(&c.WebSocket.SendBuffer, file.WebSocket.SendBuffer)
	}
	if file.Chat != nil {
		applyInt(&c.Chat.RateLimit, file.Chat.RateLimit)
		applyDurationMS(&c.Chat.RateWindow, file.Chat.RateWindowMS)
	}

	return nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func applyDurationMS(dst *time.Duration, src *int) {
	if src != nil {
		*dst = time.Duration(*src) * time.Millisecond
	}
}

// Validate checks the resolved configuration for values the server
// cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for sqlite backend")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis address is required for redis backend")
		}
	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= c.WebSocket.PingInterval {
		return fmt.Errorf("read timeout must exceed ping interval")
	}
	if c.WebSocket.SendBuffer < 1 {
		return fmt.Errorf("send buffer must be at least 1")
	}
	if c.Chat.RateLimit < 1 {
		return fmt.Errorf("chat rate limit must be at least 1")
	}
	if c.Chat.RateWindow <= 0 {
		return fmt.Errorf("chat rate window must be positive")
	}

	return nil
}

// LoadConfigWithPrecedence resolves the configuration: defaults first,
// then environment variables, then the config file if one is given.
func LoadConfigWithPrecedence(configFile string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.LoadFromEnv()

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
