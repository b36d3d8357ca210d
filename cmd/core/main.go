package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpc_adapter "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/in/grpc"
	http_adapter "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/in/http"
	memory_adapter "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/out/sqlstore"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-bank/internal/config"
	"github.com/JoeShih716/go-mem-bank/internal/seed"
	"github.com/JoeShih716/go-mem-bank/pkg/credential"
	"github.com/JoeShih716/go-mem-bank/pkg/database"
	"github.com/JoeShih716/go-mem-bank/pkg/logger"
	"github.com/JoeShih716/go-mem-bank/pkg/session"
	"github.com/JoeShih716/go-mem-bank/pkg/wal"
)

func main() {
	configPath := flag.String("config", "", "config file path (default: ./config/config.yaml)")
	flag.Parse()

	// 1. 載入設定
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. 初始化 Logger
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()

	// 3. 初始化儲存層
	accounts, transactions, closeStorage, err := openStorage(cfg, zl)
	if err != nil {
		zl.Fatal("Failed to init storage", zap.String("backend", cfg.Storage.Backend), zap.Error(err))
	}
	defer closeStorage()

	// 4. 初始化 UseCase
	hasher := credential.NewHasher(cfg.Ledger.BcryptCost)
	coreUseCase, err := usecase.NewCoreUseCase(accounts, transactions, zl,
		usecase.WithNodeID(cfg.Ledger.NodeID),
		usecase.WithCredentialMatcher(hasher.Match),
	)
	if err != nil {
		zl.Fatal("Failed to init ledger", zap.Error(err))
	}

	// 5. 種子帳戶
	if cfg.SeedFile != "" {
		f, err := seed.Load(cfg.SeedFile)
		if err != nil {
			zl.Fatal("Failed to load seed file", zap.String("path", cfg.SeedFile), zap.Error(err))
		}
		if _, err := seed.Apply(ctx, coreUseCase, hasher, f, zl); err != nil {
			zl.Fatal("Failed to apply seed", zap.Error(err))
		}
	}
	all, err := coreUseCase.ListAccounts(ctx)
	if err != nil {
		zl.Fatal("Failed to load all accounts", zap.Error(err))
	}
	zl.Info("Loaded accounts", zap.Int("count", len(all)))

	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL)

	// 6. 啟動 gRPC Server
	var grpcServer *grpc.Server
	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			zl.Fatal("failed to listen", zap.String("addr", cfg.Server.GRPCAddr), zap.Error(err))
		}
		grpcServer = grpc.NewServer(grpc_adapter.ServerOptions(zl, sessions, coreUseCase)...)
		grpc_adapter.RegisterLedgerServiceServer(grpcServer, grpc_adapter.NewGrpcServer(coreUseCase, sessions, hasher, zl))
		reflection.Register(grpcServer)

		go func() {
			zl.Info("Starting gRPC server", zap.String("addr", cfg.Server.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				zl.Fatal("failed to serve gRPC", zap.Error(err))
			}
		}()
	}

	// 7. 啟動 REST Server
	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		handler := http_adapter.NewHandler(coreUseCase, sessions, hasher, zl, cfg.Session.CookieName)
		httpServer = &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           handler.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			zl.Info("Starting HTTP server", zap.String("addr", cfg.Server.HTTPAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zl.Fatal("failed to serve HTTP", zap.Error(err))
			}
		}()
	}

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			zl.Warn("HTTP shutdown", zap.Error(err))
		}
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	zl.Info("Server exited")
}

// openStorage 依設定建立 AccountStore 與 TransactionLog
// 回傳的 close 函式負責釋放 WAL 檔或資料庫連線
func openStorage(cfg *config.Config, zl *zap.Logger) (usecase.AccountStore, usecase.TransactionLog, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendSQL:
		dbClient, err := database.NewClient(cfg.Database, zl)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := sqlstore.Migrate(dbClient.DB()); err != nil {
			dbClient.Close()
			return nil, nil, nil, err
		}
		zl.Info("Connected to database", zap.String("driver", cfg.Database.Driver))
		closeFn := func() {
			if err := dbClient.Close(); err != nil {
				zl.Warn("close database", zap.Error(err))
			}
		}
		return sqlstore.NewAccountStore(dbClient.DB()), sqlstore.NewTransactionLog(dbClient.DB()), closeFn, nil
	}

	// 未設定 WAL 時保持 nil interface (純記憶體)
	var journal memory_adapter.Journal
	closeFn := func() {}
	if cfg.Storage.WALPath != "" {
		w, err := wal.NewWAL(cfg.Storage.WALPath)
		if err != nil {
			return nil, nil, nil, err
		}
		journal = w
		closeFn = func() {
			if err := w.Close(); err != nil {
				zl.Warn("close WAL", zap.Error(err))
			}
		}
	}
	accounts, err := memory_adapter.NewAccountStore(journal)
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	transactions, err := memory_adapter.NewTransactionLog(journal)
	if err != nil {
		closeFn()
		return nil, nil, nil, err
	}
	return accounts, transactions, closeFn, nil
}
