// Package catalog ranks, filters and summarizes the calculated accounts of a
// set of banks.
package catalog

import (
	"math"

	"bankfees/internal/core"
	"bankfees/internal/fees"
)

// Calculate flattens banks into one calculated account per account type, in
// bank order then account order.
func Calculate(banks []core.Bank, p fees.Policy) []core.CalculatedAccount {
	var n int
	for _, b := range banks {
		n += len(b.AccountTypes)
	}
	out := make([]core.CalculatedAccount, 0, n)
	for _, b := range banks {
		for _, a := range b.AccountTypes {
			out = append(out, CalculateAccount(b, a, p))
		}
	}
	return out
}

// CalculateAccount tags one account of b with its normalized charges.
func CalculateAccount(b core.Bank, a core.AccountFees, p fees.Policy) core.CalculatedAccount {
	return core.CalculatedAccount{
		AccountFees: a,
		BankID:      b.ID,
		BankName:    b.Name,
		BankType:    b.Type,
		Charges:     p.Normalize(a),
	}
}

// Summarize computes the headline figures of a result set. An empty set yields
// all zeros.
func Summarize(accounts []core.CalculatedAccount) core.Stats {
	if len(accounts) == 0 {
		return core.Stats{}
	}
	var sumBalance, sumMonthly float64
	lowest := int64(math.MaxInt64)
	for _, a := range accounts {
		sumBalance += a.MinimumBalance.Value()
		sumMonthly += float64(a.MonthlyTotal)
		if a.MonthlyTotal < lowest {
			lowest = a.MonthlyTotal
		}
	}
	n := float64(len(accounts))
	return core.Stats{
		Count:                 len(accounts),
		AverageMinimumBalance: core.Round(sumBalance / n),
		AverageMonthlyTotal:   core.Round(sumMonthly / n),
		LowestMonthlyTotal:    lowest,
	}
}
