package grpc

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
)

func stringField(req *structpb.Struct, key string) string {
	return req.GetFields()[key].GetStringValue()
}

// uuidField 解析 UUID 欄位，空白時回傳 uuid.Nil
func uuidField(req *structpb.Struct, key string) (uuid.UUID, error) {
	raw := stringField(req, key)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid %s", key)
	}
	return id, nil
}

// decimalField 金額可為字串 ("12.34") 或數字
func decimalField(req *structpb.Struct, key string) (decimal.Decimal, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return decimal.Zero, status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		d, err := decimal.NewFromString(kind.StringValue)
		if err != nil {
			return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s", key)
		}
		return d, nil
	case *structpb.Value_NumberValue:
		// NewFromFloat 遇到 NaN / Inf 會 panic
		if math.IsNaN(kind.NumberValue) || math.IsInf(kind.NumberValue, 0) {
			return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s", key)
		}
		return decimal.NewFromFloat(kind.NumberValue), nil
	}
	return decimal.Zero, status.Errorf(codes.InvalidArgument, "invalid %s", key)
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return s, nil
}

// accountMessage 對外的帳戶資料 (不含憑證)
func accountMessage(a *domain.Account) map[string]any {
	return map[string]any{
		"id":           a.ID.String(),
		"name":         a.Name,
		"email":        a.Email,
		"phone_number": a.PhoneNumber,
		"address":      a.Address,
		"balance":      a.Balance.String(),
		"active":       a.Active,
	}
}

func transactionMessage(t *domain.Transaction) map[string]any {
	return map[string]any{
		"id":                  t.ID.String(),
		"sequence":            fmt.Sprint(t.Sequence),
		"timestamp":           t.Timestamp.Format(time.RFC3339Nano),
		"amount":              t.Amount.String(),
		"type":                t.Type.String(),
		"description":         t.Description,
		"origin_account":      t.Origin.String(),
		"destination_account": t.Destination.String(),
	}
}

// transactionFromStruct Client 端還原交易
func transactionFromStruct(s *structpb.Struct) (*domain.Transaction, error) {
	id, err := uuid.Parse(stringField(s, "id"))
	if err != nil {
		return nil, err
	}
	origin, err := uuid.Parse(stringField(s, "origin_account"))
	if err != nil {
		return nil, err
	}
	destination, err := uuid.Parse(stringField(s, "destination_account"))
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(stringField(s, "amount"))
	if err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, stringField(s, "timestamp"))
	if err != nil {
		return nil, err
	}
	var sequence int64
	if _, err := fmt.Sscan(stringField(s, "sequence"), &sequence); err != nil {
		return nil, err
	}
	tran := &domain.Transaction{
		ID:          id,
		Sequence:    sequence,
		Timestamp:   ts.UTC(),
		Amount:      amount,
		Description: stringField(s, "description"),
		Origin:      origin,
		Destination: destination,
	}
	switch stringField(s, "type") {
	case domain.TransactionTypeDeposit.String():
		tran.Type = domain.TransactionTypeDeposit
	case domain.TransactionTypeWithdraw.String():
		tran.Type = domain.TransactionTypeWithdraw
	case domain.TransactionTypeTransfer.String():
		tran.Type = domain.TransactionTypeTransfer
	}
	return tran, nil
}
