// Package config 載入服務設定 (viper)。
// 讀取順序: 程式內預設值 -> config/config.yaml -> 環境變數 (LEDGER_ 前綴，"." 換成 "_")。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JoeShih716/go-mem-bank/pkg/database"
	"github.com/JoeShih716/go-mem-bank/pkg/logger"
)

// 儲存後端
const (
	BackendMemory = "memory"
	BackendSQL    = "sql"
)

// EnvPrefix 環境變數前綴，例如 LEDGER_SERVER_GRPC_ADDR
const EnvPrefix = "LEDGER"

type ServerConfig struct {
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	HTTPAddr        string        `mapstructure:"http_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StorageConfig backend 為 memory 時 wal_path 空白代表不落地
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	WALPath string `mapstructure:"wal_path"`
}

type SessionConfig struct {
	Secret     string        `mapstructure:"secret"`
	Issuer     string        `mapstructure:"issuer"`
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookie_name"`
}

type LedgerConfig struct {
	NodeID     int64 `mapstructure:"node_id"`     // snowflake 節點編號 (0~1023)
	BcryptCost int   `mapstructure:"bcrypt_cost"` // 0 代表 bcrypt.DefaultCost
}

type Config struct {
	Server   ServerConfig    `mapstructure:"server"`
	Storage  StorageConfig   `mapstructure:"storage"`
	Database database.Config `mapstructure:"database"`
	Session  SessionConfig   `mapstructure:"session"`
	Log      logger.Config   `mapstructure:"log"`
	Ledger   LedgerConfig    `mapstructure:"ledger"`
	SeedFile string          `mapstructure:"seed_file"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.wal_path", "")

	v.SetDefault("database.driver", database.DriverMySQL)
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "ledger")
	v.SetDefault("database.path", "ledger.db")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.max_retries", 5)
	v.SetDefault("database.retry_interval", 2*time.Second)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("session.secret", "")
	v.SetDefault("session.issuer", "go-mem-bank")
	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.cookie_name", "AuthToken")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.encoding", "")

	v.SetDefault("ledger.node_id", 1)
	v.SetDefault("ledger.bcrypt_cost", 0)

	v.SetDefault("seed_file", "")
}

// Load 載入設定
//
// 參數:
//
//	path: string - 設定檔路徑；空字串時搜尋 ./config/config.yaml 與 ./config.yaml，找不到則只用預設值與環境變數
//
// 回傳:
//
//	*Config: 已驗證的設定
//	error: 讀檔/解析/驗證失敗
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 檢查設定是否可用
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory, BackendSQL:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendMemory, BackendSQL, c.Storage.Backend)
	}
	if c.Storage.Backend == BackendSQL {
		if _, err := c.Database.DSN(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if c.Session.Secret == "" {
		return errors.New("session.secret is required (set LEDGER_SESSION_SECRET)")
	}
	if c.Ledger.NodeID < 0 || c.Ledger.NodeID > 1023 {
		return fmt.Errorf("ledger.node_id must be within 0..1023, got %d", c.Ledger.NodeID)
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return errors.New("at least one of server.grpc_addr / server.http_addr is required")
	}
	return nil
}
