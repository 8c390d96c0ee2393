package fees

import "bankfees/internal/core"

var defaultPolicy = DefaultPolicy()

// Normalize prices an account under DefaultPolicy.
func Normalize(a core.AccountFees) core.Charges {
	return defaultPolicy.Normalize(a)
}

// Customize prices an account under DefaultPolicy and the given usage.
func Customize(a core.AccountFees, u core.UsageProfile) core.CustomCharges {
	return defaultPolicy.Customize(a, u)
}

// AnnualCharges is the sum of the fees billed once a year.
func AnnualCharges(a core.AccountFees) float64 {
	return a.AccountMaintenanceFee.Value() +
		a.OnlineBankingFee.Value() +
		a.SMSBankingFee.Value() +
		a.DebitCardFee.Value() +
		a.CreditCardFee.Value() +
		a.CheckbookFee.Value() +
		a.StatementFee.Value() +
		a.OtherCharges.Value()
}

// MonthlyTransactionCharges is the per-month transaction cost at the policy's
// assumed volume.
func (p Policy) MonthlyTransactionCharges(a core.AccountFees) float64 {
	return a.ATMFeeOther.Value()*float64(p.Usage.MonthlyATMOtherBank) +
		a.NSPBFee.Value()*float64(p.Usage.MonthlyNSPBTransfers) +
		a.BEFTNFee.Value()*float64(p.Usage.MonthlyBEFTNTransfers)
}

// Normalize computes the yearly total as annual fees plus twelve months of
// assumed transactions. The monthly total is the unrounded yearly figure
// divided by twelve; both are rounded independently, so YearlyTotal need not
// equal MonthlyTotal*12.
func (p Policy) Normalize(a core.AccountFees) core.Charges {
	yearly := AnnualCharges(a) + p.MonthlyTransactionCharges(a)*12
	return core.Charges{
		MonthlyTotal: core.Round(yearly / 12),
		YearlyTotal:  core.Round(yearly),
	}
}

// Customize computes the monthly cost under a user's usage profile. Card fees
// are annual and spread over twelve months; statement and checkbook fees are
// charged per unit. Other charges are not included. Negative counts in u are
// treated as zero.
func (p Policy) Customize(a core.AccountFees, u core.UsageProfile) core.CustomCharges {
	u = u.Sanitized()

	total := a.AccountMaintenanceFee.Value()
	if p.MinimumBalanceAsCost {
		total += a.MinimumBalance.Value()
	}
	if u.OnlineBanking {
		total += a.OnlineBankingFee.Value()
	}
	if u.SMS {
		total += a.SMSBankingFee.Value()
	}
	if u.Statements {
		total += a.StatementFee.Value() * float64(u.MonthlyStatements)
	}
	if u.Checkbook {
		total += a.CheckbookFee.Value() * float64(u.MonthlyCheckbooks)
	}
	if u.DebitCard {
		total += a.DebitCardFee.Value() / 12
	}
	if u.CreditCard {
		total += a.CreditCardFee.Value() / 12
	}
	total += a.ATMFeeOther.Value() * float64(u.MonthlyATMOtherBank)
	total += a.NSPBFee.Value() * float64(u.MonthlyNSPBTransfers)
	total += a.BEFTNFee.Value() * float64(u.MonthlyBEFTNTransfers)

	monthly := core.Round(total)
	return core.CustomCharges{
		CustomMonthlyTotal: monthly,
		CustomYearlyTotal:  monthly * 12,
		Usage:              u,
	}
}
