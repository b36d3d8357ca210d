package usecase_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JoeShih716/go-mem-bank/internal/app/core/adapter/out/memory"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/domain"
	"github.com/JoeShih716/go-mem-bank/internal/app/core/usecase"
)

type fixture struct {
	core         *usecase.CoreUseCase
	accounts     *memory.AccountStore
	transactions *memory.TransactionLog
}

func newFixture(t *testing.T, logger *zap.Logger, opts ...usecase.Option) *fixture {
	t.Helper()
	accounts, err := memory.NewAccountStore(nil)
	if err != nil {
		t.Fatal(err)
	}
	transactions, err := memory.NewTransactionLog(nil)
	if err != nil {
		t.Fatal(err)
	}
	if logger == nil {
		logger = zaptest.NewLogger(t)
	}
	core, err := usecase.NewCoreUseCase(accounts, transactions, logger, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{core: core, accounts: accounts, transactions: transactions}
}

func amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// open 建立帳戶並存入初始金額
func (f *fixture) open(t *testing.T, name string, initial string) *domain.Account {
	t.Helper()
	acc, err := f.core.CreateAccount(context.Background(), domain.Profile{
		Name:        name,
		Email:       name + "@example.com",
		PhoneNumber: "09-" + name,
		Credential:  "pw-" + name,
	})
	if err != nil {
		t.Fatalf("CreateAccount(%s) err=%v", name, err)
	}
	if amt := amount(initial); amt.IsPositive() {
		if _, err := f.core.Deposit(context.Background(), acc.ID, amt); err != nil {
			t.Fatalf("Deposit(%s) err=%v", name, err)
		}
	}
	return acc
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	acc, err := f.core.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAccount(%s) err=%v", id, err)
	}
	return acc.Balance
}

func (f *fixture) assertBalance(t *testing.T, id uuid.UUID, want string) {
	t.Helper()
	if got := f.balance(t, id); !got.Equal(amount(want)) {
		t.Fatalf("balance(%s)=%s want=%s", id, got, want)
	}
}

func (f *fixture) transactionCount(t *testing.T) int {
	t.Helper()
	all, err := f.transactions.ListAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return len(all)
}

// assertConservation 每個帳戶餘額 = 交易紀錄的入帳總和 - 出帳總和
func (f *fixture) assertConservation(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	accounts, err := f.core.ListAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, acc := range accounts {
		history, err := f.core.GetTransactionHistory(ctx, acc.ID)
		if err != nil {
			t.Fatal(err)
		}
		sum := decimal.Zero
		for _, tran := range history {
			if tran.Destination == acc.ID {
				sum = sum.Add(tran.Amount)
			}
			if tran.Origin == acc.ID {
				sum = sum.Sub(tran.Amount)
			}
		}
		if !sum.Equal(acc.Balance) {
			t.Fatalf("account %s balance=%s but log nets to %s", acc.ID, acc.Balance, sum)
		}
		if len(acc.History) != len(history) {
			t.Fatalf("account %s history=%d log=%d", acc.ID, len(acc.History), len(history))
		}
	}
}

func TestExampleScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	a := f.open(t, "a", "1000")
	b := f.open(t, "b", "0")

	dep, err := f.core.Deposit(ctx, a.ID, amount("500"))
	if err != nil {
		t.Fatal(err)
	}
	f.assertBalance(t, a.ID, "1500")
	if dep.Type != domain.TransactionTypeDeposit || dep.Destination != a.ID || dep.Origin != domain.ExternalAccount {
		t.Fatalf("unexpected deposit %+v", dep)
	}
	if !dep.Amount.Equal(amount("500")) || dep.Description != "Deposit" {
		t.Fatalf("unexpected deposit %+v", dep)
	}
	if dep.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp not UTC: %v", dep.Timestamp)
	}

	if _, err := f.core.Withdraw(ctx, a.ID, amount("2000")); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}
	f.assertBalance(t, a.ID, "1500")

	tr, err := f.core.Transfer(ctx, a.ID, b.ID, amount("300"), "")
	if err != nil {
		t.Fatal(err)
	}
	f.assertBalance(t, a.ID, "1200")
	f.assertBalance(t, b.ID, "300")
	if tr.Origin != a.ID || tr.Destination != b.ID || !tr.Amount.Equal(amount("300")) || tr.Description != "Transfer" {
		t.Fatalf("unexpected transfer %+v", tr)
	}

	history, err := f.core.GetTransactionHistory(ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].ID != tr.ID {
		t.Fatalf("b history=%+v", history)
	}
	f.assertConservation(t)
}

func TestWithdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	a := f.open(t, "a", "100.25")

	tran, err := f.core.Withdraw(ctx, a.ID, amount("100.25"))
	if err != nil {
		t.Fatal(err)
	}
	if tran.Destination != domain.ExternalAccount || tran.Origin != a.ID || tran.Description != "Withdraw" {
		t.Fatalf("unexpected withdraw %+v", tran)
	}
	f.assertBalance(t, a.ID, "0")
	f.assertConservation(t)
}

func TestValidationFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	a := f.open(t, "a", "50")
	b := f.open(t, "b", "0")
	before := f.transactionCount(t)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"deposit zero", func() error { _, err := f.core.Deposit(ctx, a.ID, decimal.Zero); return err }, domain.ErrInvalidAmount},
		{"deposit negative", func() error { _, err := f.core.Deposit(ctx, a.ID, amount("-1")); return err }, domain.ErrInvalidAmount},
		{"deposit sentinel", func() error {
			_, err := f.core.Deposit(ctx, domain.ExternalAccount, amount("1"))
			return err
		}, domain.ErrInvalidAccount},
		{"deposit unknown", func() error { _, err := f.core.Deposit(ctx, uuid.New(), amount("1")); return err }, domain.ErrAccountNotFound},
		{"withdraw unknown", func() error { _, err := f.core.Withdraw(ctx, uuid.New(), amount("1")); return err }, domain.ErrAccountNotFound},
		{"withdraw zero", func() error { _, err := f.core.Withdraw(ctx, a.ID, decimal.Zero); return err }, domain.ErrInvalidAmount},
		{"transfer self", func() error { _, err := f.core.Transfer(ctx, a.ID, a.ID, amount("1"), ""); return err }, domain.ErrInvalidOperation},
		{"transfer to sentinel", func() error {
			_, err := f.core.Transfer(ctx, a.ID, domain.ExternalAccount, amount("1"), "")
			return err
		}, domain.ErrInvalidAccount},
		{"transfer negative", func() error { _, err := f.core.Transfer(ctx, a.ID, b.ID, amount("-3"), ""); return err }, domain.ErrInvalidAmount},
		{"history unknown", func() error { _, err := f.core.GetTransactionHistory(ctx, uuid.New()); return err }, domain.ErrAccountNotFound},
		{"get sentinel", func() error { _, err := f.core.GetAccount(ctx, domain.ExternalAccount); return err }, domain.ErrInvalidAccount},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Fatalf("err=%v want=%v", err, tt.want)
			}
		})
	}

	f.assertBalance(t, a.ID, "50")
	f.assertBalance(t, b.ID, "0")
	if after := f.transactionCount(t); after != before {
		t.Fatalf("transactions %d -> %d after failed operations", before, after)
	}
}

func TestTransferAtomicity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	a := f.open(t, "a", "100")
	b := f.open(t, "b", "10")
	before := f.transactionCount(t)

	if _, err := f.core.Transfer(ctx, a.ID, b.ID, amount("100.01"), ""); !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}
	if _, err := f.core.Transfer(ctx, a.ID, uuid.New(), amount("1"), ""); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("err=%v want ErrAccountNotFound", err)
	}

	f.assertBalance(t, a.ID, "100")
	f.assertBalance(t, b.ID, "10")
	if after := f.transactionCount(t); after != before {
		t.Fatalf("transactions %d -> %d after failed transfers", before, after)
	}
}

func TestTransferDescription(t *testing.T) {
	f := newFixture(t, nil)
	a := f.open(t, "a", "10")
	b := f.open(t, "b", "0")

	tran, err := f.core.Transfer(context.Background(), a.ID, b.ID, amount("1"), "lunch")
	if err != nil {
		t.Fatal(err)
	}
	if tran.Description != "lunch" {
		t.Fatalf("description=%q want lunch", tran.Description)
	}
}

func TestCreateAccountUniqueness(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	f := newFixture(t, zap.New(core))

	acc, err := f.core.CreateAccount(ctx, domain.Profile{Name: "A", Email: "a@example.com", PhoneNumber: "111", Credential: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if !acc.Active || !acc.Balance.IsZero() || len(acc.History) != 0 || acc.ID == uuid.Nil {
		t.Fatalf("unexpected new account %+v", acc)
	}

	dups := []domain.Profile{
		{Name: "B", Email: "A@EXAMPLE.com", PhoneNumber: "222", Credential: "x"},
		{Name: "C", Email: "c@example.com", PhoneNumber: "111", Credential: "x"},
	}
	for _, p := range dups {
		_, err := f.core.CreateAccount(ctx, p)
		if !errors.Is(err, domain.ErrAccountExists) {
			t.Fatalf("err=%v want ErrAccountExists", err)
		}
		// 錯誤訊息不得帶出個資
		if strings.Contains(err.Error(), p.Email) || strings.Contains(err.Error(), p.PhoneNumber) {
			t.Fatalf("error leaks PII: %q", err.Error())
		}
	}

	all, _ := f.core.ListAccounts(ctx)
	if len(all) != 1 {
		t.Fatalf("accounts=%d want=1", len(all))
	}
	if n := logs.FilterField(zap.String("op", "CreateAccount")).FilterLevelExact(zapcore.WarnLevel).Len(); n != 2 {
		t.Fatalf("warn logs=%d want=2", n)
	}
}

func TestConcurrentCreateSameEmail(t *testing.T) {
	f := newFixture(t, zap.NewNop())

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.core.CreateAccount(context.Background(), domain.Profile{
				Name: "x", Email: "same@example.com", PhoneNumber: uuid.NewString(),
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if created != 1 {
		t.Fatalf("created=%d want=1", created)
	}
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	a := f.open(t, "a", "0")

	got, err := f.core.Authenticate(ctx, "A@example.com", "pw-a")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != a.ID {
		t.Fatalf("id=%v want=%v", got.ID, a.ID)
	}

	if _, err := f.core.Authenticate(ctx, "a@example.com", "wrong"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("wrong password err=%v want ErrAccountNotFound", err)
	}
	if _, err := f.core.Authenticate(ctx, "nobody@example.com", "pw-a"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("unknown email err=%v want ErrAccountNotFound", err)
	}
}

func TestAuthenticateCustomMatcher(t *testing.T) {
	f := newFixture(t, nil, usecase.WithCredentialMatcher(func(stored, presented string) bool {
		return stored == "pw-"+presented
	}))
	f.open(t, "a", "0")

	if _, err := f.core.Authenticate(context.Background(), "a@example.com", "a"); err != nil {
		t.Fatalf("matcher not used: %v", err)
	}
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	a := f.open(t, "a", "100")
	b := f.open(t, "b", "100")

	ok, err := f.core.Deactivate(ctx, a.ID)
	if err != nil || !ok {
		t.Fatalf("Deactivate ok=%v err=%v", ok, err)
	}

	// 第二次停用：回報失敗且不改變狀態
	before, _ := f.core.GetAccount(ctx, a.ID)
	ok, err = f.core.Deactivate(ctx, a.ID)
	if err != nil || ok {
		t.Fatalf("second Deactivate ok=%v err=%v want false,nil", ok, err)
	}
	after, _ := f.core.GetAccount(ctx, a.ID)
	if after.Active || !after.Balance.Equal(before.Balance) || len(after.History) != len(before.History) {
		t.Fatalf("state changed: %+v -> %+v", before, after)
	}

	if _, err := f.core.Deactivate(ctx, uuid.New()); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("unknown err=%v want ErrAccountNotFound", err)
	}

	// 停用後不可作為扣款方，也不接受本人存款
	if _, err := f.core.Withdraw(ctx, a.ID, amount("1")); !errors.Is(err, domain.ErrInactiveAccount) {
		t.Fatalf("withdraw err=%v want ErrInactiveAccount", err)
	}
	if _, err := f.core.Transfer(ctx, a.ID, b.ID, amount("1"), ""); !errors.Is(err, domain.ErrInactiveAccount) {
		t.Fatalf("transfer err=%v want ErrInactiveAccount", err)
	}
	if _, err := f.core.Deposit(ctx, a.ID, amount("1")); !errors.Is(err, domain.ErrInactiveAccount) {
		t.Fatalf("deposit err=%v want ErrInactiveAccount", err)
	}
	// 仍可接收轉帳
	if _, err := f.core.Transfer(ctx, b.ID, a.ID, amount("5"), ""); err != nil {
		t.Fatalf("transfer into inactive err=%v", err)
	}
	f.assertBalance(t, a.ID, "105")
	f.assertConservation(t)
}

func TestConcurrentDeposits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, zap.NewNop())
	a := f.open(t, "a", "1000")

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.core.Deposit(ctx, a.ID, amount("2.5")); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	f.assertBalance(t, a.ID, "1500")
	history, _ := f.core.GetTransactionHistory(ctx, a.ID)
	// 初始存款 + n 筆
	if len(history) != n+1 {
		t.Fatalf("history=%d want=%d", len(history), n+1)
	}
	f.assertConservation(t)
}

func TestConcurrentOppositeTransfers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, zap.NewNop())
	a := f.open(t, "a", "1000")
	b := f.open(t, "b", "1000")

	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for i := 0; i < 200; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = f.core.Transfer(ctx, a.ID, b.ID, amount("3"), "")
			}()
			go func() {
				defer wg.Done()
				_, _ = f.core.Transfer(ctx, b.ID, a.ID, amount("2"), "")
			}()
		}
		wg.Wait()
	}()

	select {
	case <-done:
	case <-time.After(20 * time.Second):
		t.Fatal("opposite transfers deadlocked")
	}

	total := f.balance(t, a.ID).Add(f.balance(t, b.ID))
	if !total.Equal(amount("2000")) {
		t.Fatalf("total=%s want=2000", total)
	}
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		if f.balance(t, id).IsNegative() {
			t.Fatalf("negative balance on %s", id)
		}
	}
	f.assertConservation(t)
}

func TestConcurrentWithdrawNeverNegative(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, zap.NewNop())
	a := f.open(t, "a", "100")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.core.Withdraw(ctx, a.ID, amount("7")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// 100 / 7 = 14 筆成功，剩 2
	if succeeded != 14 {
		t.Fatalf("succeeded=%d want=14", succeeded)
	}
	f.assertBalance(t, a.ID, "2")
	f.assertConservation(t)
}

func TestBalanceConservationMixedSequence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, zap.NewNop())
	accs := []*domain.Account{f.open(t, "a", "500"), f.open(t, "b", "50"), f.open(t, "c", "0")}

	for i := 0; i < 60; i++ {
		from := accs[i%3]
		to := accs[(i+1)%3]
		switch i % 4 {
		case 0:
			_, _ = f.core.Deposit(ctx, to.ID, amount("13.37"))
		case 1:
			_, _ = f.core.Withdraw(ctx, from.ID, amount("21"))
		default:
			_, _ = f.core.Transfer(ctx, from.ID, to.ID, amount("42.1"), "")
		}
	}
	f.assertConservation(t)
}

func TestSequenceAndClock(t *testing.T) {
	fixed := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("UTC+8", 8*3600))
	f := newFixture(t, nil, usecase.WithClock(func() time.Time { return fixed }), usecase.WithNodeID(3))
	a := f.open(t, "a", "10")

	t1, _ := f.core.Deposit(context.Background(), a.ID, amount("1"))
	t2, _ := f.core.Deposit(context.Background(), a.ID, amount("1"))
	if !t1.Timestamp.Equal(fixed) || t1.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp=%v want %v in UTC", t1.Timestamp, fixed)
	}
	if t2.Sequence <= t1.Sequence {
		t.Fatalf("sequence not increasing: %d then %d", t1.Sequence, t2.Sequence)
	}

	history, _ := f.core.GetTransactionHistory(context.Background(), a.ID)
	if history[len(history)-1].ID != t2.ID {
		t.Fatal("history not ordered by sequence on equal timestamps")
	}
}

func TestInvalidNodeID(t *testing.T) {
	accounts, _ := memory.NewAccountStore(nil)
	transactions, _ := memory.NewTransactionLog(nil)
	if _, err := usecase.NewCoreUseCase(accounts, transactions, nil, usecase.WithNodeID(5000)); err == nil {
		t.Fatal("expected error for out of range node id")
	}
}

// failingLog 模擬儲存層故障
type failingLog struct {
	*memory.TransactionLog
}

func (failingLog) Append(context.Context, *domain.Transaction) error {
	return errors.New("disk on fire")
}

// failingStore 在寫回指定帳戶時失敗
type failingStore struct {
	*memory.AccountStore
	failOn uuid.UUID
}

func (s *failingStore) Update(ctx context.Context, account *domain.Account) error {
	if account.ID == s.failOn {
		return errors.New("store unreachable")
	}
	return s.AccountStore.Update(ctx, account)
}

func TestInternalFaultRollsBack(t *testing.T) {
	ctx := context.Background()
	seed := newFixture(t, zap.NewNop())
	a := seed.open(t, "a", "100")
	b := seed.open(t, "b", "100")

	core, logs := observer.New(zapcore.ErrorLevel)
	broken, err := usecase.NewCoreUseCase(seed.accounts, failingLog{seed.transactions}, zap.New(core))
	if err != nil {
		t.Fatal(err)
	}
	before := seed.transactionCount(t)

	_, err = broken.Transfer(ctx, a.ID, b.ID, amount("30"), "")
	if !errors.Is(err, domain.ErrInternalFault) {
		t.Fatalf("err=%v want ErrInternalFault", err)
	}
	if strings.Contains(err.Error(), "disk") {
		t.Fatalf("internal detail leaked: %q", err.Error())
	}
	seed.assertBalance(t, a.ID, "100")
	seed.assertBalance(t, b.ID, "100")
	if seed.transactionCount(t) != before {
		t.Fatal("transaction appended despite failure")
	}
	if logs.FilterMessage("internal fault").Len() != 1 {
		t.Fatalf("internal fault not logged at error level: %d", logs.Len())
	}
	seed.assertConservation(t)
}

func TestUpdateFailureRollsBackFirstAccount(t *testing.T) {
	ctx := context.Background()
	seed := newFixture(t, zap.NewNop())
	a := seed.open(t, "a", "100")
	b := seed.open(t, "b", "100")

	// 失敗的帳戶設成上鎖順序的第二個，確保第一個已寫入後需要還原
	tran, _ := domain.NewTransaction(domain.TransactionTypeTransfer, a.ID, b.ID, amount("1"), "")
	second := tran.GetLockIDs()[1]

	store := &failingStore{AccountStore: seed.accounts, failOn: second}
	broken, err := usecase.NewCoreUseCase(store, seed.transactions, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := broken.Transfer(ctx, a.ID, b.ID, amount("40"), ""); !errors.Is(err, domain.ErrInternalFault) {
		t.Fatalf("err=%v want ErrInternalFault", err)
	}
	seed.assertBalance(t, a.ID, "100")
	seed.assertBalance(t, b.ID, "100")
	seed.assertConservation(t)
}
