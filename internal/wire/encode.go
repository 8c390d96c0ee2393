package wire

import (
	"encoding/json"
	"time"

	"bankfees/internal/core"
)

type (
	// Envelope is the response shape of the bank API.
	Envelope struct {
		Message string `json:"message"`
		Data    any    `json:"data"`
	}

	// BankJSON is the canonical bank wire shape: snake_case bank fields with
	// camelCase account entries, as served by GET /api/banks.
	BankJSON struct {
		ID              string        `json:"id"`
		BankName        string        `json:"bank_name"`
		BankType        string        `json:"bank_type"`
		EstablishedYear *int          `json:"established_year,omitempty"`
		Headquarters    string        `json:"headquarters,omitempty"`
		Website         string        `json:"website,omitempty"`
		TotalBranches   *int          `json:"total_branches,omitempty"`
		TotalATMs       *int          `json:"total_atms,omitempty"`
		AccountTypes    []AccountJSON `json:"account_types"`
		CreatedAt       *time.Time    `json:"created_at,omitempty"`
		UpdatedAt       *time.Time    `json:"updated_at,omitempty"`
	}

	AccountJSON struct {
		ID                    *int64   `json:"id,omitempty"`
		Type                  string   `json:"type"`
		MinimumBalance        float64  `json:"minimumBalance"`
		AccountMaintenanceFee float64  `json:"accountMaintenanceFee"`
		ATMFeeOwn             float64  `json:"atmFeeOwn"`
		ATMFeeOther           float64  `json:"atmFeeOther"`
		OnlineBankingFee      float64  `json:"onlineBankingFee"`
		SMSBankingFee         float64  `json:"smsBankingFee"`
		DebitCardFee          float64  `json:"debitCardFee"`
		CreditCardFee         float64  `json:"creditCardFee"`
		NSPBFee               float64  `json:"nspbFee"`
		NEFTFee               float64  `json:"neftFee,omitempty"`
		RTGSFee               float64  `json:"rtgsFee"`
		BEFTNFee              float64  `json:"beftnFee"`
		CheckbookFee          float64  `json:"checkbookFee"`
		StatementFee          float64  `json:"statementFee"`
		OtherCharges          float64  `json:"otherCharges"`
		InterestRate          *float64 `json:"interestRate,omitempty"`
	}
)

// ToBankJSON converts a bank to its wire shape.
func ToBankJSON(b core.Bank) BankJSON {
	out := BankJSON{
		ID:              b.ID,
		BankName:        b.Name,
		BankType:        string(b.Type),
		EstablishedYear: b.EstablishedYear,
		Headquarters:    b.Headquarters,
		Website:         b.Website,
		TotalBranches:   b.TotalBranches,
		TotalATMs:       b.TotalATMs,
		AccountTypes:    make([]AccountJSON, 0, len(b.AccountTypes)),
	}
	for _, a := range b.AccountTypes {
		out.AccountTypes = append(out.AccountTypes, ToAccountJSON(a))
	}
	if !b.CreatedAt.IsZero() {
		t := b.CreatedAt
		out.CreatedAt = &t
	}
	if !b.UpdatedAt.IsZero() {
		t := b.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

// ToAccountJSON converts an account fee schedule to its wire shape. Non-finite
// amounts are written as 0.
func ToAccountJSON(a core.AccountFees) AccountJSON {
	return AccountJSON{
		ID:                    a.ID,
		Type:                  string(a.Type),
		MinimumBalance:        a.MinimumBalance.Value(),
		AccountMaintenanceFee: a.AccountMaintenanceFee.Value(),
		ATMFeeOwn:             a.ATMFeeOwn.Value(),
		ATMFeeOther:           a.ATMFeeOther.Value(),
		OnlineBankingFee:      a.OnlineBankingFee.Value(),
		SMSBankingFee:         a.SMSBankingFee.Value(),
		DebitCardFee:          a.DebitCardFee.Value(),
		CreditCardFee:         a.CreditCardFee.Value(),
		NSPBFee:               a.NSPBFee.Value(),
		NEFTFee:               a.NEFTFee.Value(),
		RTGSFee:               a.RTGSFee.Value(),
		BEFTNFee:              a.BEFTNFee.Value(),
		CheckbookFee:          a.CheckbookFee.Value(),
		StatementFee:          a.StatementFee.Value(),
		OtherCharges:          a.OtherCharges.Value(),
		InterestRate:          a.InterestRate,
	}
}

// EncodeBanks writes banks in the {"message", "data"} envelope.
func EncodeBanks(message string, banks []core.Bank) ([]byte, error) {
	data := make([]BankJSON, 0, len(banks))
	for _, b := range banks {
		data = append(data, ToBankJSON(b))
	}
	return json.Marshal(Envelope{Message: message, Data: data})
}

// EncodeBank writes one bank in the {"message", "data"} envelope.
func EncodeBank(message string, b core.Bank) ([]byte, error) {
	return json.Marshal(Envelope{Message: message, Data: ToBankJSON(b)})
}
