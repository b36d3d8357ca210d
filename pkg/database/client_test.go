package database

import (
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{
			name: "mysql",
			cfg:  Config{Driver: DriverMySQL, Host: "db", Port: 3306, User: "u", Password: "p", DBName: "bank"},
			want: "u:p@tcp(db:3306)/bank?charset=utf8mb4&parseTime=True&loc=UTC",
		},
		{
			name: "default driver is mysql",
			cfg:  Config{Host: "db", Port: 3306, User: "u", Password: "p", DBName: "bank"},
			want: "u:p@tcp(db:3306)/bank?charset=utf8mb4&parseTime=True&loc=UTC",
		},
		{
			name: "postgres",
			cfg:  Config{Driver: DriverPostgres, Host: "pg", Port: 5432, User: "u", Password: "p", DBName: "bank"},
			want: "host=pg port=5432 user=u password=p dbname=bank sslmode=disable TimeZone=UTC",
		},
		{name: "sqlite", cfg: Config{Driver: DriverSQLite, Path: "bank.db"}, want: "bank.db"},
		{name: "sqlite without path", cfg: Config{Driver: DriverSQLite}, wantErr: true},
		{name: "unknown", cfg: Config{Driver: "oracle"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.DSN()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("DSN()=%q want=%q", got, tt.want)
			}
		})
	}
}

func TestNewClientSQLite(t *testing.T) {
	cfg := Config{
		Driver:       DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "bank.db"),
		MaxOpenConns: 1,
		LogLevel:     "silent",
	}
	client, err := NewClient(cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	var one int
	if err := client.DB().Raw("SELECT 1").Scan(&one).Error; err != nil {
		t.Fatal(err)
	}
	if one != 1 {
		t.Fatalf("SELECT 1 = %d", one)
	}
}

func TestNewClientUnsupportedDriver(t *testing.T) {
	_, err := NewClient(Config{Driver: "oracle"}, nil)
	if err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("err=%v want unsupported driver", err)
	}
}
