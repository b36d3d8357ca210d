package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName gRPC 服務名稱
// 訊息一律使用 google.protobuf.Struct，金額以十進位字串傳遞避免浮點誤差
const ServiceName = "ledger.v1.LedgerService"

// 方法名稱
const (
	MethodCreateAccount = "CreateAccount"
	MethodLogin         = "Login"
	MethodDeactivate    = "Deactivate"
	MethodDeposit       = "Deposit"
	MethodWithdraw      = "Withdraw"
	MethodTransfer      = "Transfer"
	MethodGetBalance    = "GetBalance"
	MethodGetHistory    = "GetHistory"
)

// FullMethod 回傳 "/ledger.v1.LedgerService/Method"
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// LedgerServiceServer 服務端需實作的方法
type LedgerServiceServer interface {
	CreateAccount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Deactivate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Deposit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Withdraw(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Transfer(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetBalance(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type handlerFunc func(srv LedgerServiceServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// unaryMethod 產生與 protoc-gen-go-grpc 相同行為的 MethodDesc
func unaryMethod(method string, call handlerFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(LedgerServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(LedgerServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// LedgerServiceDesc 服務描述
var LedgerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LedgerServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodCreateAccount, LedgerServiceServer.CreateAccount),
		unaryMethod(MethodLogin, LedgerServiceServer.Login),
		unaryMethod(MethodDeactivate, LedgerServiceServer.Deactivate),
		unaryMethod(MethodDeposit, LedgerServiceServer.Deposit),
		unaryMethod(MethodWithdraw, LedgerServiceServer.Withdraw),
		unaryMethod(MethodTransfer, LedgerServiceServer.Transfer),
		unaryMethod(MethodGetBalance, LedgerServiceServer.GetBalance),
		unaryMethod(MethodGetHistory, LedgerServiceServer.GetHistory),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/ledger.proto",
}

// RegisterLedgerServiceServer 註冊服務
func RegisterLedgerServiceServer(s grpc.ServiceRegistrar, srv LedgerServiceServer) {
	s.RegisterService(&LedgerServiceDesc, srv)
}
