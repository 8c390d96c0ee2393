package catalog

import (
	"slices"
	"strings"

	"bankfees/internal/core"
)

// Filter narrows a set of calculated accounts. Every non-empty criterion must
// match; the zero value matches everything. Upper bounds are inclusive.
type Filter struct {
	Search            string
	AccountTypes      []core.AccountType
	BankTypes         []core.BankType
	MaxMinimumBalance *float64
	MaxMonthlyTotal   *float64
}

// DefaultFilter is the filter a listing starts from: minimum balance up to
// 100000 and monthly total up to 1000.
func DefaultFilter() Filter {
	return Filter{}.WithMaxMinimumBalance(100000).WithMaxMonthlyTotal(1000)
}

func (f Filter) WithSearch(s string) Filter {
	f.Search = s
	return f
}

func (f Filter) WithAccountTypes(types ...core.AccountType) Filter {
	f.AccountTypes = slices.Clone(types)
	return f
}

func (f Filter) WithBankTypes(types ...core.BankType) Filter {
	f.BankTypes = slices.Clone(types)
	return f
}

func (f Filter) WithMaxMinimumBalance(v float64) Filter {
	f.MaxMinimumBalance = &v
	return f
}

func (f Filter) WithMaxMonthlyTotal(v float64) Filter {
	f.MaxMonthlyTotal = &v
	return f
}

// Match reports whether a satisfies every criterion of f.
func (f Filter) Match(a core.CalculatedAccount) bool {
	if s := strings.TrimSpace(f.Search); s != "" &&
		!strings.Contains(strings.ToLower(a.BankName), strings.ToLower(s)) {
		return false
	}
	if len(f.AccountTypes) > 0 && !slices.Contains(f.AccountTypes, a.Type) {
		return false
	}
	if len(f.BankTypes) > 0 && !slices.Contains(f.BankTypes, a.BankType) {
		return false
	}
	if f.MaxMinimumBalance != nil && a.MinimumBalance.Value() > *f.MaxMinimumBalance {
		return false
	}
	if f.MaxMonthlyTotal != nil && float64(a.MonthlyTotal) > *f.MaxMonthlyTotal {
		return false
	}
	return true
}

// Apply returns the accounts that match f, preserving order.
func (f Filter) Apply(accounts []core.CalculatedAccount) []core.CalculatedAccount {
	out := make([]core.CalculatedAccount, 0, len(accounts))
	for _, a := range accounts {
		if f.Match(a) {
			out = append(out, a)
		}
	}
	return out
}
