package google

import (
	"fmt"
	"strconv"
	"strings"

	"bankfees/internal/core"
)

// parseBanks converts a values matrix (as returned by Sheets API) into banks.
// The first row is the header; every further row is one account type of one
// bank. Rows sharing a bank_id are grouped in first-seen order, and the bank
// fields are taken from the first row of each group. A row without an
// account_type contributes the bank only.
func parseBanks(values [][]interface{}) ([]core.Bank, error) {
	if len(values) == 0 {
		return []core.Bank{}, nil
	}
	headers := toStrings(values[0])
	col := func(name string) int { return indexOf(headers, name) }
	colID, colName := col("bank_id"), col("bank_name")
	if colID == -1 || colName == -1 {
		missing := make([]string, 0, 2)
		if colID == -1 {
			missing = append(missing, "bank_id")
		}
		if colName == -1 {
			missing = append(missing, "bank_name")
		}
		return nil, fmt.Errorf("unexpected bank sheet header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	cols := map[string]int{}
	for _, h := range []string{
		"bank_type", "established_year", "headquarters", "website", "total_branches", "total_atms",
		"account_type", "minimum_balance", "account_maintenance_fee", "atm_fee_own", "atm_fee_other",
		"nspb_fee", "beftn_fee", "neft_fee", "rtgs_fee", "debit_card_fee", "credit_card_fee",
		"online_banking_fee", "sms_banking_fee", "statement_fee", "checkbook_fee", "other_charges",
		"interest_rate",
	} {
		cols[h] = col(h)
	}
	get := func(row []string, name string) string { return safeGet(row, cols[name]) }
	amount := func(row []string, name string) core.Amount {
		a, err := core.ParseAmount(get(row, name))
		if err != nil {
			return 0
		}
		return a
	}

	index := map[string]int{}
	banks := make([]core.Bank, 0)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		id := safeGet(row, colID)
		if id == "" || strings.HasPrefix(id, "#") {
			continue
		}
		pos, seen := index[id]
		if !seen {
			banks = append(banks, core.Bank{
				ID:              id,
				Name:            safeGet(row, colName),
				Type:            core.BankType(get(row, "bank_type")),
				EstablishedYear: optInt(get(row, "established_year")),
				Headquarters:    get(row, "headquarters"),
				Website:         get(row, "website"),
				TotalBranches:   optInt(get(row, "total_branches")),
				TotalATMs:       optInt(get(row, "total_atms")),
				AccountTypes:    []core.AccountFees{},
			})
			pos = len(banks) - 1
			index[id] = pos
		}

		accountType := get(row, "account_type")
		if accountType == "" {
			continue
		}
		a := core.AccountFees{
			Type:                  core.AccountType(accountType),
			MinimumBalance:        amount(row, "minimum_balance"),
			AccountMaintenanceFee: amount(row, "account_maintenance_fee"),
			ATMFeeOwn:             amount(row, "atm_fee_own"),
			ATMFeeOther:           amount(row, "atm_fee_other"),
			NSPBFee:               amount(row, "nspb_fee"),
			BEFTNFee:              amount(row, "beftn_fee"),
			NEFTFee:               amount(row, "neft_fee"),
			RTGSFee:               amount(row, "rtgs_fee"),
			DebitCardFee:          amount(row, "debit_card_fee"),
			CreditCardFee:         amount(row, "credit_card_fee"),
			OnlineBankingFee:      amount(row, "online_banking_fee"),
			SMSBankingFee:         amount(row, "sms_banking_fee"),
			StatementFee:          amount(row, "statement_fee"),
			CheckbookFee:          amount(row, "checkbook_fee"),
			OtherCharges:          amount(row, "other_charges"),
		}
		if s := get(row, "interest_rate"); s != "" {
			if r, err := core.ParseAmount(strings.TrimSuffix(s, "%")); err == nil {
				f := float64(r)
				a.InterestRate = &f
			}
		}
		banks[pos].AccountTypes = append(banks[pos].AccountTypes, a)
	}
	return banks, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch n := v.(type) {
		case nil:
		case float64:
			// UNFORMATTED_VALUE cells decode as float64; avoid 1e+06.
			out[i] = strconv.FormatFloat(n, 'f', -1, 64)
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return out
}

// indexOf matches headers case-insensitively, treating spaces and dashes as
// underscores, so "Bank ID" finds bank_id.
func indexOf(arr []string, target string) int {
	target = headerKey(target)
	for i, v := range arr {
		if headerKey(v) == target {
			return i
		}
	}
	return -1
}

func headerKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

func optInt(s string) *int {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return nil
	}
	n := int(f)
	return &n
}
