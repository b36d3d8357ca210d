package database

import (
	"fmt"
	"time"
)

// 支援的資料庫驅動
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config 定義資料庫連線與連線池的配置
type Config struct {
	Driver   string `mapstructure:"driver"`   // mysql / postgres / sqlite
	Host     string `mapstructure:"host"`     // 資料庫主機地址
	Port     int    `mapstructure:"port"`     // 資料庫埠號 (預設 3306 / 5432)
	User     string `mapstructure:"user"`     // 使用者名稱
	Password string `mapstructure:"password"` // 密碼
	DBName   string `mapstructure:"dbname"`   // 資料庫名稱
	Path     string `mapstructure:"path"`     // SQLite 檔案路徑 (":memory:" 亦可)

	// 連線池設定 (Connection Pool)
	// 參考: https://github.com/go-sql-driver/mysql#important-settings
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大開啟連線數
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大閒置連線數
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 連線最大存活時間

	// 連線重試
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`

	// GORM 設定
	LogLevel string `mapstructure:"log_level"` // Log 等級: "silent", "error", "warn", "info"
}

// DSN (Data Source Name) 產生連線字串
func (c *Config) DSN() (string, error) {
	switch c.Driver {
	case DriverMySQL, "":
		// 格式: user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=UTC
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User,
			c.Password,
			c.Host,
			c.Port,
			c.DBName,
		), nil
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			c.Host,
			c.Port,
			c.User,
			c.Password,
			c.DBName,
		), nil
	case DriverSQLite:
		if c.Path == "" {
			return "", fmt.Errorf("sqlite path is required")
		}
		return c.Path, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", c.Driver)
}
