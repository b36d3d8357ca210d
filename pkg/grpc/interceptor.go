package grpc

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// LoggingInterceptor 客戶端請求日誌，失敗時以 Warn 記錄狀態碼
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		if err != nil {
			logger.Warn("rpc failed",
				zap.String("method", method),
				zap.String("code", status.Code(err).String()),
				zap.Duration("elapsed", time.Since(start)))
			return err
		}
		logger.Debug("rpc", zap.String("method", method), zap.Duration("elapsed", time.Since(start)))
		return nil
	}
}
