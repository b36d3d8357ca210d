package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	grpc_adapter "github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/in/grpc"
	pkggrpc "github.com/JoeShih716/go-mem-bank/pkg/grpc"
	"github.com/JoeShih716/go-mem-bank/pkg/logger"
)

func main() {
	target := flag.String("target", "localhost:50051", "gRPC server address")
	email := flag.String("email", "loadtest@example.com", "account email (created when missing)")
	password := flag.String("password", "loadtest", "account password")
	phone := flag.String("phone", "0000000000", "account phone number used on creation")
	total := flag.Int("n", 100000, "total deposits")
	concurrency := flag.Int("c", 1000, "concurrent requests")
	amount := flag.String("amount", "1", "amount per deposit")
	timeout := flag.Duration("timeout", 120*time.Second, "overall timeout")
	flag.Parse()

	zl, err := logger.New(logger.Config{Level: "warn", Development: true})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	perDeposit, err := decimal.NewFromString(*amount)
	if err != nil {
		zl.Fatal("invalid amount", zap.String("amount", *amount), zap.Error(err))
	}

	pool := pkggrpc.NewPool(
		pkggrpc.WithLogger(zl),
		pkggrpc.WithInterceptor(pkggrpc.LoggingInterceptor(zl)),
	)
	defer pool.Close()
	conn, err := pool.GetConnection(*target)
	if err != nil {
		zl.Fatal("did not connect", zap.Error(err))
	}
	c := grpc_adapter.NewClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if _, err := c.CreateAccount(ctx, "loadtest", *email, *phone, "", *password); err != nil && status.Code(err) != codes.AlreadyExists {
		zl.Fatal("create account", zap.Error(err))
	}
	if _, err := c.Login(ctx, *email, *password); err != nil {
		zl.Fatal("login", zap.Error(err))
	}
	before, err := c.GetBalance(ctx)
	if err != nil {
		zl.Fatal("get balance", zap.Error(err))
	}

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	sem := make(chan struct{}, *concurrency)
	start := time.Now()

	for i := 0; i < *total; i++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			if _, _, err := c.Deposit(ctx, perDeposit); err != nil {
				if failed.Add(1)%10000 == 1 {
					zl.Warn("deposit failed", zap.Int("idx", idx), zap.Error(err))
				}
			}
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	after, err := c.GetBalance(context.Background())
	if err != nil {
		zl.Fatal("get balance", zap.Error(err))
	}
	ok := int64(*total) - failed.Load()
	expected := before.Add(perDeposit.Mul(decimal.NewFromInt(ok)))

	fmt.Printf("Completed %d requests in %v (%d failed)\n", *total, elapsed, failed.Load())
	fmt.Printf("TPS: %.2f\n", float64(*total)/elapsed.Seconds())
	fmt.Printf("Balance: %s -> %s (expected %s)\n", before, after, expected)
	if !after.Equal(expected) {
		zl.Error("balance mismatch", zap.Stringer("expected", expected), zap.Stringer("actual", after))
	}
}
