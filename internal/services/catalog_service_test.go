package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bankfees/internal/catalog"
	"bankfees/internal/core"
	"bankfees/internal/fees"
	applog "bankfees/internal/log"
	"bankfees/internal/metrics"
	"bankfees/internal/source"
)

type fakeSource struct {
	mu      sync.Mutex
	banks   []core.Bank
	listErr error
	getErr  map[string]error
	gets    []string
}

func (f *fakeSource) ListBanks(ctx context.Context) ([]core.Bank, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.banks, nil
}

func (f *fakeSource) GetBank(ctx context.Context, id string) (core.Bank, error) {
	f.mu.Lock()
	f.gets = append(f.gets, id)
	f.mu.Unlock()
	if err := f.getErr[id]; err != nil {
		return core.Bank{}, err
	}
	for _, b := range f.banks {
		if b.ID == id {
			return b, nil
		}
	}
	return core.Bank{}, core.ErrBankNotFound
}

func testBanks() []core.Bank {
	return []core.Bank{
		{
			ID:   "sonali",
			Name: "Sonali Bank",
			Type: core.StateOwnedCommercial,
			AccountTypes: []core.AccountFees{
				// yearly 1320, monthly 110
				{Type: core.Savings, AccountMaintenanceFee: 600, ATMFeeOther: 10, NSPBFee: 5, BEFTNFee: 5},
				{Type: core.Current, MinimumBalance: 5000, AccountMaintenanceFee: 1200},
			},
		},
		{
			ID:   "brac",
			Name: "BRAC Bank",
			Type: core.PrivateCommercial,
			AccountTypes: []core.AccountFees{
				{Type: core.Savings, MinimumBalance: 1000, AccountMaintenanceFee: 240},
			},
		},
		{ID: "empty", Name: "Empty Bank"},
	}
}

func newService(src source.Source, opts ...Option) *CatalogService {
	opts = append([]Option{WithLogger(applog.Discard())}, opts...)
	return NewCatalogService(src, fees.DefaultPolicy(), opts...)
}

func TestListAccounts(t *testing.T) {
	svc := newService(&fakeSource{banks: testBanks()}, WithMetrics(metrics.New("test")))

	got, err := svc.ListAccounts(context.Background(), Query{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Total != 3 || got.Shown != 3 || len(got.Accounts) != 3 {
		t.Fatalf("unexpected counts total=%d shown=%d", got.Total, got.Shown)
	}
	// default order is monthly total ascending: brac 20, sonali savings 110, sonali current 100
	want := []int64{20, 100, 110}
	for i, a := range got.Accounts {
		if a.MonthlyTotal != want[i] {
			t.Fatalf("position %d: monthly %d want %d", i, a.MonthlyTotal, want[i])
		}
	}
	if got.Stats.Count != 3 || got.Stats.LowestMonthlyTotal != 20 || got.Stats.AverageMinimumBalance != 2000 {
		t.Fatalf("unexpected stats %+v", got.Stats)
	}
}

func TestListAccountsFilterAndSort(t *testing.T) {
	svc := newService(&fakeSource{banks: testBanks()})
	q := Query{
		Filter:    catalog.Filter{}.WithAccountTypes(core.Savings),
		SortKey:   catalog.SortByBankName,
		Direction: catalog.Descending,
	}
	got, err := svc.ListAccounts(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	if got.Total != 3 || got.Shown != 2 {
		t.Fatalf("total=%d shown=%d", got.Total, got.Shown)
	}
	if got.Accounts[0].BankID != "sonali" || got.Accounts[1].BankID != "brac" {
		t.Fatalf("expected name-descending order, got %s, %s", got.Accounts[0].BankID, got.Accounts[1].BankID)
	}

	_, err = svc.ListAccounts(context.Background(), Query{SortKey: "bogus"})
	if !errors.Is(err, core.ErrInvalidSortKey) {
		t.Fatalf("expected ErrInvalidSortKey, got %v", err)
	}
}

func TestListAccountsEmptyAndFailure(t *testing.T) {
	got, err := newService(&fakeSource{}).ListAccounts(context.Background(), Query{})
	if err != nil || got.Total != 0 || got.Stats != (core.Stats{}) {
		t.Fatalf("empty source: %+v %v", got, err)
	}

	failing := &fakeSource{listErr: source.Fetch("remote", "list", errors.New("down"))}
	_, err = newService(failing).ListAccounts(context.Background(), Query{})
	if !IsUpstreamFailure(err) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

func TestBankDetail(t *testing.T) {
	svc := newService(&fakeSource{banks: testBanks()})
	d, err := svc.BankDetail(context.Background(), "sonali")
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Accounts) != 2 || d.Accounts[0].Type != core.Savings || d.Accounts[0].MonthlyTotal != 110 {
		t.Fatalf("unexpected detail %+v", d.Accounts)
	}
	if _, err := svc.BankDetail(context.Background(), "nope"); !errors.Is(err, core.ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
}

func TestCustomize(t *testing.T) {
	svc := newService(&fakeSource{banks: testBanks()})
	ctx := context.Background()

	res, err := svc.Customize(ctx, "sonali", "", core.DefaultUsageProfile())
	if err != nil {
		t.Fatal(err)
	}
	if res.Account.Type != core.Savings {
		t.Fatalf("empty account type should pick the first account, got %s", res.Account.Type)
	}
	// 600 + 10*4 + 5*2 + 5*2
	if res.Custom.CustomMonthlyTotal != 660 || res.Custom.CustomYearlyTotal != 7920 {
		t.Fatalf("unexpected custom totals %+v", res.Custom)
	}
	if res.Default.MonthlyTotal != 110 {
		t.Fatalf("default totals should be attached, got %+v", res.Default)
	}

	res, err = svc.Customize(ctx, "brac", core.Savings, core.UsageProfile{})
	if err != nil {
		t.Fatal(err)
	}
	// maintenance 240 plus minimum balance 1000 as cost
	if res.Custom.CustomMonthlyTotal != 1240 {
		t.Fatalf("expected 1240, got %d", res.Custom.CustomMonthlyTotal)
	}

	cases := []struct {
		bank string
		typ  core.AccountType
		want error
	}{
		{"sonali", core.FixedDeposit, core.ErrAccountTypeNotFound},
		{"empty", "", core.ErrAccountTypeNotFound},
		{"nope", "", core.ErrBankNotFound},
	}
	for _, tc := range cases {
		if _, err := svc.Customize(ctx, tc.bank, tc.typ, core.DefaultUsageProfile()); !errors.Is(err, tc.want) {
			t.Errorf("%s/%s: expected %v, got %v", tc.bank, tc.typ, tc.want, err)
		}
	}
}

func TestCompare(t *testing.T) {
	src := &fakeSource{banks: testBanks()}
	svc := newService(src)
	ctx := context.Background()

	sel, err := catalog.ParseSelection("brac,ghost,sonali")
	if err != nil {
		t.Fatal(err)
	}
	cmp, err := svc.Compare(ctx, sel)
	if err != nil {
		t.Fatal(err)
	}
	if len(cmp.Banks) != 2 || cmp.Banks[0].Bank.ID != "brac" || cmp.Banks[1].Bank.ID != "sonali" {
		t.Fatalf("selection order not kept: %+v", cmp.Banks)
	}
	if len(cmp.Missing) != 1 || cmp.Missing[0] != "ghost" {
		t.Fatalf("unexpected missing %v", cmp.Missing)
	}
	if len(src.gets) != 3 {
		t.Fatalf("expected 3 fetches, got %d", len(src.gets))
	}

	only, _ := catalog.ParseSelection("ghost")
	if _, err := svc.Compare(ctx, only); !errors.Is(err, core.ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
	if _, err := svc.Compare(ctx, catalog.Selection{}); !errors.Is(err, core.ErrEmptySelection) {
		t.Fatalf("expected ErrEmptySelection, got %v", err)
	}

	src.getErr = map[string]error{"sonali": source.Fetch("remote", "get", errors.New("timeout"))}
	if _, err := svc.Compare(ctx, sel); !IsUpstreamFailure(err) {
		t.Fatalf("expected upstream failure, got %v", err)
	}
}

type fakeInvalidator struct {
	calls int
	err   error
}

func (f *fakeInvalidator) Invalidate(context.Context) error {
	f.calls++
	return f.err
}

type fakePublisher struct {
	reasons []string
	err     error
}

func (f *fakePublisher) PublishRefresh(_ context.Context, reason string) error {
	f.reasons = append(f.reasons, reason)
	return f.err
}

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	if err := newService(&fakeSource{}).Refresh(ctx, "manual"); err != nil {
		t.Fatalf("refresh without cache or publisher: %v", err)
	}

	inv := &fakeInvalidator{}
	pub := &fakePublisher{}
	svc := newService(&fakeSource{}, WithCache(inv), WithPublisher(pub))
	if err := svc.Refresh(ctx, "manual"); err != nil {
		t.Fatal(err)
	}
	if inv.calls != 1 || len(pub.reasons) != 1 || pub.reasons[0] != "manual" {
		t.Fatalf("invalidate=%d publish=%v", inv.calls, pub.reasons)
	}

	pub.err = errors.New("broker down")
	if err := svc.Refresh(ctx, "manual"); err == nil {
		t.Fatal("expected publish error")
	}
	if inv.calls != 2 {
		t.Fatalf("cache must be cleared even if publish fails")
	}
}

func TestBreakdownAndReady(t *testing.T) {
	svc := newService(&fakeSource{banks: testBanks()})
	if b := svc.Breakdown(); b.Title == "" || len(b.Items) == 0 {
		t.Fatalf("empty breakdown %+v", b)
	}
	n, err := svc.Ready(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("ready: %d %v", n, err)
	}
}
