package core

import (
	"errors"
	"math"
	"testing"
)

func TestAmountValue(t *testing.T) {
	cases := []struct {
		in   Amount
		want float64
	}{
		{0, 0},
		{600, 600},
		{-5, -5},
		{Amount(math.NaN()), 0},
		{Amount(math.Inf(1)), 0},
		{Amount(math.Inf(-1)), 0},
	}
	for i, tc := range cases {
		if got := tc.in.Value(); got != tc.want {
			t.Fatalf("case %d: Value()=%v want %v", i, got, tc.want)
		}
	}
}

func TestRound(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{110, 110},
		{109.5, 110},
		{109.49, 109},
		{2.5, 3},
		{-2.5, -2},
		{-2.6, -3},
		{math.NaN(), 0},
		{math.Inf(1), 0},
	}
	for _, tc := range cases {
		if got := Round(tc.in); got != tc.want {
			t.Fatalf("Round(%v)=%d want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    Amount
		wantErr bool
	}{
		{"1200", 1200, false},
		{"1,200", 1200, false},
		{"  250.50 ", 250.5, false},
		{"৳ 500", 500, false},
		{"Tk 10", 10, false},
		{"BDT 1,000.25", 1000.25, false},
		{"", 0, false},
		{"-", 0, false},
		{"N/A", 0, false},
		{"-20", -20, false},
		{"free", 0, true},
		{"1.2.3", 0, true},
		{"12a", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("ParseAmount(%q) expected ErrInvalidAmount, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAmount(%q) unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseAmount(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestBankValidate(t *testing.T) {
	good := Bank{ID: "brac", Name: "BRAC Bank", AccountTypes: []AccountFees{{Type: Savings}}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Bank{
		{ID: "", Name: "x"},
		{ID: "x", Name: "  "},
		{ID: "x", Name: "y", AccountTypes: []AccountFees{{Type: ""}}},
	}
	for i, b := range bads {
		if err := b.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
	if err := (Bank{Name: "x"}).Validate(); !errors.Is(err, ErrEmptyBankID) {
		t.Fatalf("expected ErrEmptyBankID, got %v", err)
	}
}

func TestBankAccount(t *testing.T) {
	b := Bank{ID: "b", AccountTypes: []AccountFees{
		{Type: Savings, AccountMaintenanceFee: 100},
		{Type: Current, AccountMaintenanceFee: 500},
	}}

	a, err := b.Account("")
	if err != nil || a.Type != Savings {
		t.Fatalf("empty type should select first account, got %v %v", a.Type, err)
	}
	a, err = b.Account(Current)
	if err != nil || a.AccountMaintenanceFee != 500 {
		t.Fatalf("unexpected account %+v err=%v", a, err)
	}
	if _, err := b.Account(Student); !errors.Is(err, ErrAccountTypeNotFound) {
		t.Fatalf("expected ErrAccountTypeNotFound, got %v", err)
	}
	if _, err := (Bank{}).Account(""); !errors.Is(err, ErrAccountTypeNotFound) {
		t.Fatalf("expected ErrAccountTypeNotFound for bank without accounts, got %v", err)
	}
}

func TestUsageProfileSanitized(t *testing.T) {
	u := UsageProfile{MonthlyATMOtherBank: -3, MonthlyNSPBTransfers: 2, MonthlyCheckbooks: -1, SMS: true}
	got := u.Sanitized()
	if got.MonthlyATMOtherBank != 0 || got.MonthlyCheckbooks != 0 || got.MonthlyNSPBTransfers != 2 || !got.SMS {
		t.Fatalf("unexpected sanitized profile: %+v", got)
	}
	if u.MonthlyATMOtherBank != -3 {
		t.Fatalf("Sanitized must not mutate the receiver")
	}
}

func TestDefaultUsageProfile(t *testing.T) {
	d := DefaultUsageProfile()
	if !d.DebitCard || !d.OnlineBanking || !d.SMS || !d.Statements {
		t.Fatalf("default toggles missing: %+v", d)
	}
	if d.CreditCard || d.Checkbook {
		t.Fatalf("credit card and checkbook must default off: %+v", d)
	}
	if d.MonthlyATMOtherBank != 4 || d.MonthlyNSPBTransfers != 2 || d.MonthlyBEFTNTransfers != 2 || d.MonthlyStatements != 1 {
		t.Fatalf("unexpected default counts: %+v", d)
	}
}
