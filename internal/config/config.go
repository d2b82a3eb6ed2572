package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers understood by the server.
const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverCouch  = "couch"
)

// DefaultPalette is the set of presence colors handed out round-robin.
var DefaultPalette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A",
	"#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E2",
}

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	MongoDB   MongoDBConfig
	CouchDB   CouchDBConfig
	Redis     RedisConfig
	Collab    CollabConfig
	WebSocket WebSocketConfig
	MinIO     MinIOConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port          string
	Host          string
	Environment   string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	AllowedOrigin string
}

type StoreConfig struct {
	Driver  string
	Timeout time.Duration
}

type MongoDBConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type CouchDBConfig struct {
	URL      string
	Database string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Channel  string
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type CollabConfig struct {
	AutosaveMinInterval time.Duration
	SaveTimeout         time.Duration
	SendBuffer          int
	Palette             []string
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type LogConfig struct {
	Level string
}

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("CORS_ALLOWED_ORIGIN", "*")
	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("STORE_TIMEOUT_MS", 5000)
	v.SetDefault("MONGODB_DATABASE", "docsync")
	v.SetDefault("MONGODB_COLLECTION", "documents")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("COUCHDB_DATABASE", "docsync")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_CHANNEL", "docsync:rooms")
	v.SetDefault("AUTOSAVE_MIN_INTERVAL_MS", 2000)
	v.SetDefault("SAVE_TIMEOUT_MS", 5000)
	v.SetDefault("WS_SEND_BUFFER", 256)
	v.SetDefault("WS_READ_BUFFER_SIZE", 4096)
	v.SetDefault("WS_WRITE_BUFFER_SIZE", 4096)
	v.SetDefault("WS_MAX_MESSAGE_SIZE", 10<<20)
	v.SetDefault("WS_WRITE_WAIT_SECONDS", 10)
	v.SetDefault("WS_PONG_WAIT_SECONDS", 60)
	v.SetDefault("MINIO_BUCKET", "docsync")
	v.SetDefault("LOG_LEVEL", "info")

	pongWait := time.Duration(v.GetInt("WS_PONG_WAIT_SECONDS")) * time.Second

	cfg := &Config{
		Server: ServerConfig{
			Port:          v.GetString("SERVER_PORT"),
			Host:          v.GetString("SERVER_HOST"),
			Environment:   v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			AllowedOrigin: v.GetString("CORS_ALLOWED_ORIGIN"),
		},
		Store: StoreConfig{
			Driver:  strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
			Timeout: time.Duration(v.GetInt("STORE_TIMEOUT_MS")) * time.Millisecond,
		},
		MongoDB: MongoDBConfig{
			URI:        v.GetString("MONGODB_URI"),
			Database:   v.GetString("MONGODB_DATABASE"),
			Collection: v.GetString("MONGODB_COLLECTION"),
			Timeout:    time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		CouchDB: CouchDBConfig{
			URL:      v.GetString("COUCHDB_URL"),
			Database: v.GetString("COUCHDB_DATABASE"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Channel:  v.GetString("REDIS_CHANNEL"),
		},
		Collab: CollabConfig{
			AutosaveMinInterval: time.Duration(v.GetInt("AUTOSAVE_MIN_INTERVAL_MS")) * time.Millisecond,
			SaveTimeout:         time.Duration(v.GetInt("SAVE_TIMEOUT_MS")) * time.Millisecond,
			SendBuffer:          v.GetInt("WS_SEND_BUFFER"),
			Palette:             parsePalette(v.GetString("PRESENCE_PALETTE")),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  v.GetInt("WS_READ_BUFFER_SIZE"),
			WriteBufferSize: v.GetInt("WS_WRITE_BUFFER_SIZE"),
			MaxMessageSize:  v.GetInt64("WS_MAX_MESSAGE_SIZE"),
			WriteWait:       time.Duration(v.GetInt("WS_WRITE_WAIT_SECONDS")) * time.Second,
			PongWait:        pongWait,
			PingPeriod:      pongWait * 9 / 10,
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoDB.URI == "" {
			return fmt.Errorf("config: MONGODB_URI is required when STORE_DRIVER=%s", DriverMongo)
		}
	case DriverCouch:
		if c.CouchDB.URL == "" {
			return fmt.Errorf("config: COUCHDB_URL is required when STORE_DRIVER=%s", DriverCouch)
		}
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Store.Timeout <= 0 || c.Collab.SaveTimeout <= 0 {
		return fmt.Errorf("config: storage timeouts must be positive")
	}
	if c.Collab.SendBuffer <= 0 {
		return fmt.Errorf("config: WS_SEND_BUFFER must be positive")
	}
	return nil
}

// parsePalette splits a comma separated list of colors, falling back to DefaultPalette.
func parsePalette(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultPalette...)
	}
	return out
}
