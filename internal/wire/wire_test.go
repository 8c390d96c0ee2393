package wire

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"bankfees/internal/core"
)

const bankObject = `{
	"id": "brac",
	"bank_name": "BRAC Bank",
	"bank_type": "Private Commercial Bank",
	"established_year": 2001,
	"total_branches": "187",
	"account_types": [
		{"id": 1, "type": "Savings", "minimumBalance": "1,000", "accountMaintenanceFee": 600, "atmFeeOther": 10, "nspbFee": 5, "beftnFee": 5}
	]
}`

func TestDecodeBanksEnvelopes(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"banks envelope", `{"banks": [` + bankObject + `]}`},
		{"data envelope", `{"message": "ok", "data": [` + bankObject + `]}`},
		{"bare array", `[` + bankObject + `]`},
		{"single data object", `{"data": ` + bankObject + `}`},
		{"bare object", bankObject},
	}
	for _, tc := range cases {
		banks, err := DecodeBanks([]byte(tc.payload))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if len(banks) != 1 {
			t.Fatalf("%s: expected 1 bank, got %d", tc.name, len(banks))
		}
		b := banks[0]
		if b.ID != "brac" || b.Name != "BRAC Bank" || b.Type != core.PrivateCommercial {
			t.Fatalf("%s: unexpected identity %+v", tc.name, b)
		}
		if b.EstablishedYear == nil || *b.EstablishedYear != 2001 {
			t.Fatalf("%s: established year not decoded", tc.name)
		}
		if b.TotalBranches == nil || *b.TotalBranches != 187 {
			t.Fatalf("%s: numeric string total_branches not decoded", tc.name)
		}
		if len(b.AccountTypes) != 1 {
			t.Fatalf("%s: expected 1 account, got %d", tc.name, len(b.AccountTypes))
		}
		a := b.AccountTypes[0]
		if a.MinimumBalance != 1000 || a.AccountMaintenanceFee != 600 || a.ATMFeeOther != 10 {
			t.Fatalf("%s: unexpected fees %+v", tc.name, a)
		}
		if a.ID == nil || *a.ID != 1 {
			t.Fatalf("%s: account id not decoded", tc.name)
		}
	}
}

func TestDecodeBanksBanksKeyWinsOverData(t *testing.T) {
	payload := `{"banks": [{"id": "a", "bank_name": "A"}], "data": [{"id": "b", "bank_name": "B"}, {"id": "c", "bank_name": "C"}]}`
	banks, err := DecodeBanks([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if len(banks) != 1 || banks[0].ID != "a" {
		t.Fatalf("expected banks key to win, got %+v", banks)
	}
}

func TestDecodeBanksCamelCaseFirst(t *testing.T) {
	payload := `[{"id": 7, "bankName": "Camel", "bank_name": "Snake", "accountTypes": [{"type": "Current", "minimumBalance": 5, "minimum_balance": 9}]}]`
	banks, err := DecodeBanks([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	b := banks[0]
	if b.ID != "7" {
		t.Fatalf("numeric id should decode as string, got %q", b.ID)
	}
	if b.Name != "Camel" {
		t.Fatalf("camelCase key should win, got %q", b.Name)
	}
	if len(b.AccountTypes) != 1 || b.AccountTypes[0].MinimumBalance != 5 {
		t.Fatalf("unexpected accounts %+v", b.AccountTypes)
	}
}

func TestDecodeBanksSnakeCaseAccounts(t *testing.T) {
	payload := `[{"id": "x", "bank_name": "X", "account_types": [{"account_type": "Student", "account_maintenance_fee": "250.5", "atm_fee_other": null, "interest_rate": "3.5"}]}]`
	banks, err := DecodeBanks([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	a := banks[0].AccountTypes[0]
	if a.Type != core.Student || a.AccountMaintenanceFee != 250.5 || a.ATMFeeOther != 0 {
		t.Fatalf("unexpected account %+v", a)
	}
	if a.InterestRate == nil || *a.InterestRate != 3.5 {
		t.Fatalf("interest rate not decoded")
	}
}

func TestDecodeBanksLenientValues(t *testing.T) {
	payload := `[{"id": "x", "bank_name": "X", "website": 12, "account_types": [{"type": "Savings", "smsBankingFee": true, "debitCardFee": {"v": 1}, "creditCardFee": "n/a", "otherCharges": "lots"}]}]`
	banks, err := DecodeBanks([]byte(payload))
	if err != nil {
		t.Fatalf("garbage field values must not be errors: %v", err)
	}
	a := banks[0].AccountTypes[0]
	if a.SMSBankingFee != 0 || a.DebitCardFee != 0 || a.CreditCardFee != 0 || a.OtherCharges != 0 {
		t.Fatalf("garbage values should read as zero, got %+v", a)
	}
	if banks[0].EstablishedYear != nil {
		t.Fatalf("absent optional field should stay nil")
	}
}

func TestDecodeBanksDropsAllNullAggregate(t *testing.T) {
	payload := `{"data": [{"id": "empty", "bank_name": "No Accounts", "account_types": [{"id": null, "type": null, "minimumBalance": null, "interestRate": null}]}]}`
	banks, err := DecodeBanks([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if len(banks[0].AccountTypes) != 0 {
		t.Fatalf("all-null aggregate entry should be dropped, got %+v", banks[0].AccountTypes)
	}
}

func TestDecodeBanksMissingAccountTypes(t *testing.T) {
	for _, payload := range []string{
		`[{"id": "a", "bank_name": "A"}]`,
		`[{"id": "a", "bank_name": "A", "account_types": null}]`,
		`[{"id": "a", "bank_name": "A", "account_types": []}]`,
	} {
		banks, err := DecodeBanks([]byte(payload))
		if err != nil {
			t.Fatalf("%s: %v", payload, err)
		}
		if banks[0].AccountTypes == nil || len(banks[0].AccountTypes) != 0 {
			t.Fatalf("%s: expected empty non-nil accounts", payload)
		}
	}
}

func TestDecodeBanksEmptyAndOddShapes(t *testing.T) {
	for _, payload := range []string{`[]`, `{"data": []}`, `{"message": "none"}`, `null`, `42`, `{"data": null}`} {
		banks, err := DecodeBanks([]byte(payload))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", payload, err)
		}
		if len(banks) != 0 {
			t.Fatalf("%s: expected no banks, got %d", payload, len(banks))
		}
	}
}

func TestDecodeBanksMalformed(t *testing.T) {
	for _, payload := range []string{``, `{`, `[{"id": "a",]`, `not json`} {
		if _, err := DecodeBanks([]byte(payload)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%q: expected ErrMalformed, got %v", payload, err)
		}
	}
}

func TestDecodeBank(t *testing.T) {
	b, err := DecodeBank([]byte(`{"message": "ok", "data": ` + bankObject + `}`))
	if err != nil {
		t.Fatal(err)
	}
	if b.ID != "brac" || len(b.AccountTypes) != 1 {
		t.Fatalf("unexpected bank %+v", b)
	}

	if _, err := DecodeBank([]byte(`{"message": "Bank not found"}`)); !errors.Is(err, core.ErrBankNotFound) {
		t.Fatalf("expected ErrBankNotFound, got %v", err)
	}
	if _, err := DecodeBank([]byte(`{oops`)); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeTimestamps(t *testing.T) {
	payload := `[{"id": "a", "bank_name": "A", "created_at": "2024-03-01T10:00:00Z", "updated_at": "2024-03-02T11:30:00.123456"}]`
	banks, err := DecodeBanks([]byte(payload))
	if err != nil {
		t.Fatal(err)
	}
	if banks[0].CreatedAt.Year() != 2024 || banks[0].UpdatedAt.Day() != 2 {
		t.Fatalf("timestamps not decoded: %+v", banks[0])
	}
}

func TestEncodeBanksRoundTrip(t *testing.T) {
	rate := 4.25
	year := 1999
	in := []core.Bank{{
		ID:              "dbbl",
		Name:            "Dutch-Bangla Bank",
		Type:            core.PrivateCommercial,
		EstablishedYear: &year,
		AccountTypes: []core.AccountFees{
			{Type: core.Savings, MinimumBalance: 2000, AccountMaintenanceFee: 500, ATMFeeOther: 15, InterestRate: &rate},
		},
	}}

	data, err := EncodeBanks("Banks retrieved successfully", in)
	if err != nil {
		t.Fatal(err)
	}

	var env struct {
		Message string            `json:"message"`
		Data    []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatal(err)
	}
	if env.Message != "Banks retrieved successfully" || len(env.Data) != 1 {
		t.Fatalf("unexpected envelope %s", data)
	}

	out, err := DecodeBanks(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Name != "Dutch-Bangla Bank" || *out[0].EstablishedYear != 1999 {
		t.Fatalf("round trip lost bank fields: %+v", out)
	}
	a := out[0].AccountTypes[0]
	if a.MinimumBalance != 2000 || a.ATMFeeOther != 15 || a.InterestRate == nil || *a.InterestRate != 4.25 {
		t.Fatalf("round trip lost account fields: %+v", a)
	}
}

func TestEncodeBankWritesZeroForNonFinite(t *testing.T) {
	nan := core.Amount(math.NaN())
	data, err := EncodeBank("ok", core.Bank{ID: "a", Name: "A", AccountTypes: []core.AccountFees{{Type: core.Savings, OtherCharges: nan}}})
	if err != nil {
		t.Fatalf("encoding must not fail on NaN fees: %v", err)
	}
	b, err := DecodeBank(data)
	if err != nil {
		t.Fatal(err)
	}
	if b.AccountTypes[0].OtherCharges != 0 {
		t.Fatalf("expected 0, got %v", b.AccountTypes[0].OtherCharges)
	}
}
