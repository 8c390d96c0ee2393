package core

type (
	// UsageAssumptions is the fixed "typical customer" transaction volume the
	// default normalization prices in.
	UsageAssumptions struct {
		MonthlyATMOtherBank   int `yaml:"monthly_atm_other_bank"`
		MonthlyNSPBTransfers  int `yaml:"monthly_nspb_transfers"`
		MonthlyBEFTNTransfers int `yaml:"monthly_beftn_transfers"`
	}

	// UsageProfile is a user's own monthly usage for the custom calculator.
	// The zero value means no transactions and no optional services.
	UsageProfile struct {
		MonthlyATMOtherBank   int `yaml:"monthly_atm_other_bank" json:"monthlyAtmOtherBank"`
		MonthlyNSPBTransfers  int `yaml:"monthly_nspb_transfers" json:"monthlyNspbTransfers"`
		MonthlyBEFTNTransfers int `yaml:"monthly_beftn_transfers" json:"monthlyBeftnTransfers"`
		MonthlyStatements     int `yaml:"monthly_statements" json:"monthlyStatements"`
		MonthlyCheckbooks     int `yaml:"monthly_checkbooks" json:"monthlyCheckbooks"`

		OnlineBanking bool `yaml:"online_banking" json:"includeOnlineBanking"`
		SMS           bool `yaml:"sms" json:"includeSms"`
		DebitCard     bool `yaml:"debit_card" json:"includeDebitCard"`
		CreditCard    bool `yaml:"credit_card" json:"includeCreditCard"`
		Checkbook     bool `yaml:"checkbook" json:"includeCheckbook"`
		Statements    bool `yaml:"statements" json:"includeStatements"`
	}
)

// DefaultUsageAssumptions returns 4 other-bank ATM withdrawals and 2 transfers
// of each interbank kind per month.
func DefaultUsageAssumptions() UsageAssumptions {
	return UsageAssumptions{
		MonthlyATMOtherBank:   4,
		MonthlyNSPBTransfers:  2,
		MonthlyBEFTNTransfers: 2,
	}
}

// DefaultUsageProfile is the profile a custom calculation session starts from:
// default transaction volume, one statement, no checkbooks, with debit card,
// online banking, SMS and statements enabled.
func DefaultUsageProfile() UsageProfile {
	return UsageProfile{
		MonthlyATMOtherBank:   4,
		MonthlyNSPBTransfers:  2,
		MonthlyBEFTNTransfers: 2,
		MonthlyStatements:     1,
		MonthlyCheckbooks:     0,
		OnlineBanking:         true,
		SMS:                   true,
		DebitCard:             true,
		CreditCard:            false,
		Checkbook:             false,
		Statements:            true,
	}
}

// Sanitized returns a copy with negative counts clamped to zero.
func (u UsageProfile) Sanitized() UsageProfile {
	u.MonthlyATMOtherBank = nonNegative(u.MonthlyATMOtherBank)
	u.MonthlyNSPBTransfers = nonNegative(u.MonthlyNSPBTransfers)
	u.MonthlyBEFTNTransfers = nonNegative(u.MonthlyBEFTNTransfers)
	u.MonthlyStatements = nonNegative(u.MonthlyStatements)
	u.MonthlyCheckbooks = nonNegative(u.MonthlyCheckbooks)
	return u
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
