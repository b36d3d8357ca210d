package grpc

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

// Client LedgerService 客戶端
// 可被多個 goroutine 共用，Login 成功後自動帶上 Bearer Token
type Client struct {
	conn grpc.ClientConnInterface

	mu    sync.RWMutex
	token string
}

// NewClient 建立客戶端
//
// 參數:
//
//	conn: grpc.ClientConnInterface - 通常來自 pkg/grpc.Pool
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// SetToken 直接設定 Session Token
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) invoke(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", method, err)
	}
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateAccount 建立帳戶並回傳帳戶 ID
func (c *Client) CreateAccount(ctx context.Context, name, email, phone, address, password string) (uuid.UUID, error) {
	out, err := c.invoke(ctx, MethodCreateAccount, map[string]any{
		"name":         name,
		"email":        email,
		"phone_number": phone,
		"address":      address,
		"password":     password,
	})
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(stringField(out.GetFields()["account"].GetStructValue(), "id"))
}

// Login 登入並保存 Token
func (c *Client) Login(ctx context.Context, email, password string) (uuid.UUID, error) {
	out, err := c.invoke(ctx, MethodLogin, map[string]any{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return uuid.Nil, err
	}
	c.SetToken(stringField(out, "token"))
	return uuid.Parse(stringField(out.GetFields()["account"].GetStructValue(), "id"))
}

// Deactivate 停用登入中的帳戶
func (c *Client) Deactivate(ctx context.Context) (bool, error) {
	out, err := c.invoke(ctx, MethodDeactivate, map[string]any{})
	if err != nil {
		return false, err
	}
	return out.GetFields()["success"].GetBoolValue(), nil
}

// Deposit 存款，回傳交易與最新餘額
func (c *Client) Deposit(ctx context.Context, amount decimal.Decimal) (*domain.Transaction, decimal.Decimal, error) {
	return c.posting(ctx, MethodDeposit, map[string]any{"amount": amount.String()})
}

// Withdraw 提款，回傳交易與最新餘額
func (c *Client) Withdraw(ctx context.Context, amount decimal.Decimal) (*domain.Transaction, decimal.Decimal, error) {
	return c.posting(ctx, MethodWithdraw, map[string]any{"amount": amount.String()})
}

// Transfer 轉帳至 destination
func (c *Client) Transfer(ctx context.Context, destination uuid.UUID, amount decimal.Decimal, description string) (*domain.Transaction, decimal.Decimal, error) {
	return c.posting(ctx, MethodTransfer, map[string]any{
		"destination_account_id": destination.String(),
		"amount":                 amount.String(),
		"description":            description,
	})
}

// GetBalance 查詢餘額
func (c *Client) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	out, err := c.invoke(ctx, MethodGetBalance, map[string]any{})
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(stringField(out, "balance"))
}

// GetHistory 查詢交易紀錄 (時間遞增)
func (c *Client) GetHistory(ctx context.Context) ([]*domain.Transaction, error) {
	out, err := c.invoke(ctx, MethodGetHistory, map[string]any{})
	if err != nil {
		return nil, err
	}
	values := out.GetFields()["transactions"].GetListValue().GetValues()
	list := make([]*domain.Transaction, 0, len(values))
	for _, v := range values {
		tran, err := transactionFromStruct(v.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("decode transaction: %w", err)
		}
		list = append(list, tran)
	}
	return list, nil
}

func (c *Client) posting(ctx context.Context, method string, req map[string]any) (*domain.Transaction, decimal.Decimal, error) {
	out, err := c.invoke(ctx, method, req)
	if err != nil {
		return nil, decimal.Zero, err
	}
	tran, err := transactionFromStruct(out.GetFields()["transaction"].GetStructValue())
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("decode transaction: %w", err)
	}
	balance := decimal.Zero
	if raw := stringField(out, "current_balance"); raw != "" {
		if balance, err = decimal.NewFromString(raw); err != nil {
			return nil, decimal.Zero, fmt.Errorf("decode balance: %w", err)
		}
	}
	return tran, balance, nil
}
