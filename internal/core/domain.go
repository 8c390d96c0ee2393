package core

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	StateOwnedCommercial   BankType = "State-Owned Commercial Bank"
	SpecializedDevelopment BankType = "Specialized Development Bank"
	PrivateCommercial      BankType = "Private Commercial Bank"
	IslamicBank            BankType = "Islamic Bank"
	ForeignCommercial      BankType = "Foreign Commercial Bank"
	StateOwned             BankType = "State-Owned"
	Specialized            BankType = "Specialized"
	PrivateConventional    BankType = "Private Conventional"
)

const (
	Savings             AccountType = "Savings"
	Current             AccountType = "Current"
	Business            AccountType = "Business"
	Student             AccountType = "Student"
	SeniorCitizen       AccountType = "Senior Citizen"
	Joint               AccountType = "Joint"
	FixedDeposit        AccountType = "Fixed Deposit"
	FDR                 AccountType = "FDR"
	SND                 AccountType = "SND"
	DPS                 AccountType = "DPS"
	Salary              AccountType = "Salary"
	NRB                 AccountType = "NRB"
	ForeignCurrency     AccountType = "Foreign Currency"
	IslamicSavings      AccountType = "Islamic Savings"
	IslamicCurrent      AccountType = "Islamic Current"
	MudarabaSavings     AccountType = "Mudaraba Savings"
	AlWadiahCurrent     AccountType = "Al-Wadiah Current"
	MudarabaTermDeposit AccountType = "Mudaraba Term Deposit"
	HajjAccount         AccountType = "Hajj Account"
	WomenAccount        AccountType = "Women Account"
	PremiumBanking      AccountType = "Premium Banking"
	SMEAccount          AccountType = "SME Account"
	CorporateAccount    AccountType = "Corporate Account"
	PayrollAccount      AccountType = "Payroll Account"
	PensionScheme       AccountType = "Pension Scheme"
	ExpatriateAccount   AccountType = "Expatriate Account"
)

type (
	// BankType is the regulatory category of a bank. Values outside the
	// known set are kept verbatim.
	BankType string

	// AccountType is the product category of an account offered by a bank.
	AccountType string

	// AccountFees is the itemized fee schedule of one account type at one bank.
	// Every field is read through Amount.Value so missing or non-finite values
	// count as zero.
	AccountFees struct {
		ID                    *int64
		Type                  AccountType
		MinimumBalance        Amount
		AccountMaintenanceFee Amount
		ATMFeeOwn             Amount
		ATMFeeOther           Amount
		NSPBFee               Amount
		BEFTNFee              Amount
		NEFTFee               Amount
		RTGSFee               Amount
		DebitCardFee          Amount
		CreditCardFee         Amount
		OnlineBankingFee      Amount
		SMSBankingFee         Amount
		StatementFee          Amount
		CheckbookFee          Amount
		OtherCharges          Amount
		InterestRate          *float64
	}

	Bank struct {
		ID              string
		Name            string
		Type            BankType
		EstablishedYear *int
		Headquarters    string
		Website         string
		TotalBranches   *int
		TotalATMs       *int
		AccountTypes    []AccountFees
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	// Charges is the normalized cost estimate of an account under the default
	// usage assumptions.
	Charges struct {
		MonthlyTotal int64
		YearlyTotal  int64
	}

	// CustomCharges is the cost estimate under a user-supplied usage profile.
	CustomCharges struct {
		CustomMonthlyTotal int64
		CustomYearlyTotal  int64
		Usage              UsageProfile
	}

	// CalculatedAccount is an account fee schedule tagged with its bank and its
	// normalized charges, the unit the catalog sorts and filters.
	CalculatedAccount struct {
		AccountFees
		BankID   string
		BankName string
		BankType BankType
		Charges
	}
)

var (
	ErrBankNotFound        = errors.New("bank not found")
	ErrAccountTypeNotFound = errors.New("account type not found")
	ErrEmptyBankID         = errors.New("empty bank id")
	ErrEmptySelection      = errors.New("no banks selected")
	ErrSelectionLimit      = errors.New("too many banks selected")
	ErrInvalidSortKey      = errors.New("invalid sort key")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// Validate checks the identity fields needed to store a bank. Fee fields are
// not validated here; negative fees are accepted as published.
func (b Bank) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return ErrEmptyBankID
	}
	if strings.TrimSpace(b.Name) == "" {
		return errors.New("empty bank name")
	}
	if len(b.Name) > 200 {
		return errors.New("bank name too long (max 200 characters)")
	}
	for i, a := range b.AccountTypes {
		if strings.TrimSpace(string(a.Type)) == "" {
			return errors.New("account type " + strconv.Itoa(i) + " has no type tag")
		}
	}
	return nil
}

// Account returns the fee schedule of the given type. An empty type selects
// the first account the bank lists.
func (b Bank) Account(t AccountType) (AccountFees, error) {
	if len(b.AccountTypes) == 0 {
		return AccountFees{}, ErrAccountTypeNotFound
	}
	if t == "" {
		return b.AccountTypes[0], nil
	}
	for _, a := range b.AccountTypes {
		if a.Type == t {
			return a, nil
		}
	}
	return AccountFees{}, ErrAccountTypeNotFound
}
