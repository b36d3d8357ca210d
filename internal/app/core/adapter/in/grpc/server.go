package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
	"github.com/JoeShih716/go-mem-bank/pkg/session"
)

// PasswordHasher 註冊時將密碼轉為憑證
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// GrpcServer 帳本服務的 gRPC 入口 (Driving Adapter)
type GrpcServer struct {
	core     *usecase.CoreUseCase
	sessions *session.Manager
	hasher   PasswordHasher
	logger   *zap.Logger
}

// NewGrpcServer 建立 gRPC 服務
func NewGrpcServer(core *usecase.CoreUseCase, sessions *session.Manager, hasher PasswordHasher, logger *zap.Logger) *GrpcServer {
	return &GrpcServer{
		core:     core,
		sessions: sessions,
		hasher:   hasher,
		logger:   logger.Named("grpc"),
	}
}

var _ LedgerServiceServer = (*GrpcServer)(nil)

func (s *GrpcServer) CreateAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	profile := domain.Profile{
		Name:        strings.TrimSpace(stringField(req, "name")),
		Email:       strings.TrimSpace(stringField(req, "email")),
		PhoneNumber: strings.TrimSpace(stringField(req, "phone_number")),
		Address:     strings.TrimSpace(stringField(req, "address")),
	}
	password := stringField(req, "password")
	if profile.Name == "" || profile.Email == "" || profile.PhoneNumber == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "name, email, phone_number and password are required")
	}

	credential, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("hash password failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	profile.Credential = credential

	account, err := s.core.CreateAccount(ctx, profile)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"account": accountMessage(account)})
}

// Login 帳號或密碼錯誤一律回 Unauthenticated，停用帳戶回 PermissionDenied
func (s *GrpcServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	account, err := s.core.Authenticate(ctx, stringField(req, "email"), stringField(req, "password"))
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, status.Error(codes.Unauthenticated, "invalid credentials")
		}
		return nil, toStatus(err)
	}
	if !account.Active {
		return nil, status.Error(codes.PermissionDenied, domain.ErrInactiveAccount.Error())
	}

	token, expires, err := s.sessions.Issue(account.ID)
	if err != nil {
		s.logger.Error("issue session failed", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
	return newStruct(map[string]any{
		"token":      token,
		"expires_at": expires.Format(time.RFC3339),
		"account":    accountMessage(account),
	})
}

func (s *GrpcServer) Deactivate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := owner(ctx, req)
	if err != nil {
		return nil, err
	}
	changed, err := s.core.Deactivate(ctx, accountID)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{"success": changed})
}

func (s *GrpcServer) Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := owner(ctx, req)
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}
	tran, err := s.core.Deposit(ctx, accountID, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.postingResult(ctx, accountID, tran)
}

func (s *GrpcServer) Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := owner(ctx, req)
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}
	tran, err := s.core.Withdraw(ctx, accountID, amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return s.postingResult(ctx, accountID, tran)
}

func (s *GrpcServer) Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := owner(ctx, req)
	if err != nil {
		return nil, err
	}
	destination, err := uuidField(req, "destination_account_id")
	if err != nil {
		return nil, err
	}
	amount, err := decimalField(req, "amount")
	if err != nil {
		return nil, err
	}
	tran, err := s.core.Transfer(ctx, accountID, destination, amount, stringField(req, "description"))
	if err != nil {
		return nil, toStatus(err)
	}
	return s.postingResult(ctx, accountID, tran)
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := owner(ctx, req)
	if err != nil {
		return nil, err
	}
	account, err := s.core.GetAccount(ctx, accountID)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]any{
		"account_id": account.ID.String(),
		"balance":    account.Balance.String(),
	})
}

func (s *GrpcServer) GetHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, err := owner(ctx, req)
	if err != nil {
		return nil, err
	}
	history, err := s.core.GetTransactionHistory(ctx, accountID)
	if err != nil {
		return nil, toStatus(err)
	}
	list := make([]any, 0, len(history))
	for _, tran := range history {
		list = append(list, transactionMessage(tran))
	}
	return newStruct(map[string]any{"transactions": list})
}

// postingResult 回傳交易與發起帳戶的最新餘額 (Best Effort)
func (s *GrpcServer) postingResult(ctx context.Context, accountID uuid.UUID, tran *domain.Transaction) (*structpb.Struct, error) {
	out := map[string]any{"transaction": transactionMessage(tran)}
	if account, err := s.core.GetAccount(ctx, accountID); err == nil {
		out["current_balance"] = account.Balance.String()
	}
	return newStruct(out)
}

// owner 取得請求操作的帳戶
// account_id 省略時使用登入者，不得操作他人帳戶
func owner(ctx context.Context, req *structpb.Struct) (uuid.UUID, error) {
	caller, ok := AccountFromContext(ctx)
	if !ok {
		return uuid.Nil, status.Error(codes.Unauthenticated, "missing session")
	}
	requested, err := uuidField(req, "account_id")
	if err != nil {
		return uuid.Nil, err
	}
	if requested != uuid.Nil && requested != caller {
		return uuid.Nil, status.Error(codes.PermissionDenied, "cannot operate on another account")
	}
	return caller, nil
}
