package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/pkg/session"
)

// AccountLookup 驗證 Session 時確認帳戶仍存在且啟用中
type AccountLookup interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
}

type accountKey struct{}

// publicMethods 不需登入即可呼叫
var publicMethods = map[string]bool{
	FullMethod(MethodCreateAccount): true,
	FullMethod(MethodLogin):         true,
}

// AccountFromContext 取得驗證後的帳戶 ID
func AccountFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountKey{}).(uuid.UUID)
	return id, ok
}

// ContextWithAccount 將帳戶 ID 放入 context
func ContextWithAccount(ctx context.Context, accountID uuid.UUID) context.Context {
	return context.WithValue(ctx, accountKey{}, accountID)
}

// ServerOptions 伺服器需要的攔截器 (日誌 -> panic 復原 -> 驗證)
func ServerOptions(logger *zap.Logger, sessions *session.Manager, accounts AccountLookup) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			UnaryLoggingInterceptor(logger),
			UnaryRecoveryInterceptor(logger),
			UnaryAuthInterceptor(sessions, accounts),
		),
	}
}

// UnaryRecoveryInterceptor 將 handler 的 panic 轉成 codes.Internal，避免整個程序結束
func UnaryRecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	log := logger.Named("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic in handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.Stack("stack"))
				resp, err = nil, status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// UnaryLoggingInterceptor 記錄每個請求的方法、狀態碼與耗時
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	log := logger.Named("grpc")
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("elapsed", time.Since(start)),
		}
		switch code {
		case codes.OK:
			log.Debug("rpc", fields...)
		case codes.Internal, codes.Unknown:
			log.Error("rpc", fields...)
		default:
			log.Info("rpc", fields...)
		}
		return resp, err
	}
}

// UnaryAuthInterceptor 從 metadata "authorization: Bearer <token>" 驗證 Session
// 帳戶停用後，尚未過期的 Token 也一律回 PermissionDenied
func UnaryAuthInterceptor(sessions *session.Manager, accounts AccountLookup) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if publicMethods[info.FullMethod] {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		var token string
		for _, v := range md.Get("authorization") {
			if after, ok := strings.CutPrefix(v, "Bearer "); ok {
				token = strings.TrimSpace(after)
				break
			}
		}
		if token == "" {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		accountID, err := sessions.Parse(token)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "invalid session")
		}
		account, err := accounts.GetAccount(ctx, accountID)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, status.Error(codes.Unauthenticated, "invalid session")
		}
		if err != nil {
			return nil, toStatus(err)
		}
		if !account.Active {
			return nil, status.Error(codes.PermissionDenied, domain.ErrInactiveAccount.Error())
		}
		return handler(ContextWithAccount(ctx, accountID), req)
	}
}
