// Package wire converts bank records between their JSON wire shapes and the
// core model.
//
// Upstreams disagree on envelopes and key casing, so decoding is lenient:
// every field is looked up under its camelCase name first and its snake_case
// name second, numbers may arrive as JSON numbers or numeric strings, and a
// field that cannot be read is left at its zero value. Only input that is not
// JSON at all is an error.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"bankfees/internal/core"
)

// ErrMalformed is returned for input that is not valid JSON.
var ErrMalformed = errors.New("malformed bank payload")

type object map[string]json.RawMessage

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DecodeBanks reads a list of banks from any of the accepted envelopes, tried
// in order: {"banks": [...]}, {"data": [...]}, a bare array, then a single
// bank as {"data": {...}} or a bare object.
func DecodeBanks(data []byte) ([]core.Bank, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, ErrMalformed
	}

	var items []json.RawMessage
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case '{':
		var env object
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		switch {
		case isArray(env["banks"]):
			_ = json.Unmarshal(env["banks"], &items)
		case isArray(env["data"]):
			_ = json.Unmarshal(env["data"], &items)
		case isObject(env["data"]):
			items = []json.RawMessage{env["data"]}
		case looksLikeBank(env):
			items = []json.RawMessage{data}
		}
	default:
		return []core.Bank{}, nil
	}

	banks := make([]core.Bank, 0, len(items))
	for _, raw := range items {
		var obj object
		if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
			continue
		}
		banks = append(banks, decodeBank(obj))
	}
	return banks, nil
}

// DecodeBank reads a single bank from {"data": {...}} or a bare object. A
// payload that holds no bank returns core.ErrBankNotFound.
func DecodeBank(data []byte) (core.Bank, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return core.Bank{}, ErrMalformed
	}
	var env object
	if err := json.Unmarshal(data, &env); err != nil || env == nil {
		return core.Bank{}, core.ErrBankNotFound
	}
	if isObject(env["data"]) {
		var inner object
		if err := json.Unmarshal(env["data"], &inner); err == nil {
			env = inner
		}
	}
	if !looksLikeBank(env) {
		return core.Bank{}, core.ErrBankNotFound
	}
	return decodeBank(env), nil
}

// DecodeAccounts reads an account list such as the account_types column a
// json_agg query produces. All-null entries are dropped.
func DecodeAccounts(data []byte) ([]core.AccountFees, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return []core.AccountFees{}, nil
	}
	if !json.Valid(data) {
		return nil, ErrMalformed
	}
	return decodeAccounts(data), nil
}

func decodeBank(o object) core.Bank {
	b := core.Bank{
		ID:              o.text("id", "bankId", "bank_id"),
		Name:            o.text("bankName", "bank_name", "name"),
		Type:            core.BankType(o.text("bankType", "bank_type")),
		EstablishedYear: o.optInt("establishedYear", "established_year"),
		Headquarters:    o.text("headquarters"),
		Website:         o.text("website"),
		TotalBranches:   o.optInt("totalBranches", "total_branches"),
		TotalATMs:       o.optInt("totalAtms", "total_atms"),
		CreatedAt:       o.timestamp("createdAt", "created_at"),
		UpdatedAt:       o.timestamp("updatedAt", "updated_at"),
	}
	b.AccountTypes = decodeAccounts(o.raw("accountTypes", "account_types"))
	return b
}

func decodeAccounts(raw json.RawMessage) []core.AccountFees {
	accounts := []core.AccountFees{}
	if !isArray(raw) {
		return accounts
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return accounts
	}
	for _, item := range items {
		var o object
		if err := json.Unmarshal(item, &o); err != nil || o.allNull() {
			continue
		}
		accounts = append(accounts, decodeAccount(o))
	}
	return accounts
}

func decodeAccount(o object) core.AccountFees {
	a := core.AccountFees{
		Type:                  core.AccountType(o.text("type", "accountType", "account_type")),
		MinimumBalance:        o.amount("minimumBalance", "minimum_balance"),
		AccountMaintenanceFee: o.amount("accountMaintenanceFee", "account_maintenance_fee"),
		ATMFeeOwn:             o.amount("atmFeeOwn", "atm_fee_own"),
		ATMFeeOther:           o.amount("atmFeeOther", "atm_fee_other"),
		NSPBFee:               o.amount("nspbFee", "nspb_fee"),
		BEFTNFee:              o.amount("beftnFee", "beftn_fee"),
		NEFTFee:               o.amount("neftFee", "neft_fee"),
		RTGSFee:               o.amount("rtgsFee", "rtgs_fee"),
		DebitCardFee:          o.amount("debitCardFee", "debit_card_fee"),
		CreditCardFee:         o.amount("creditCardFee", "credit_card_fee"),
		OnlineBankingFee:      o.amount("onlineBankingFee", "online_banking_fee"),
		SMSBankingFee:         o.amount("smsBankingFee", "sms_banking_fee"),
		StatementFee:          o.amount("statementFee", "statement_fee"),
		CheckbookFee:          o.amount("checkbookFee", "checkbook_fee"),
		OtherCharges:          o.amount("otherCharges", "other_charges"),
	}
	if f, ok := o.number("id"); ok {
		id := int64(f)
		a.ID = &id
	}
	if f, ok := o.number("interestRate", "interest_rate"); ok {
		a.InterestRate = &f
	}
	return a
}

// raw returns the first present, non-null value among keys.
func (o object) raw(keys ...string) json.RawMessage {
	for _, k := range keys {
		v, ok := o[k]
		if !ok || isNull(v) {
			continue
		}
		return v
	}
	return nil
}

func (o object) text(keys ...string) string {
	v := o.raw(keys...)
	if v == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

// number reads a JSON number or a numeric string. ok is false when the field
// is absent, null or unreadable.
func (o object) number(keys ...string) (float64, bool) {
	v := o.raw(keys...)
	if v == nil {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if strings.TrimSpace(s) == "" {
			return 0, false
		}
		a, err := core.ParseAmount(s)
		if err != nil {
			return 0, false
		}
		return float64(a), true
	}
	return 0, false
}

func (o object) amount(keys ...string) core.Amount {
	f, _ := o.number(keys...)
	return core.Amount(f)
}

func (o object) optInt(keys ...string) *int {
	f, ok := o.number(keys...)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

func (o object) timestamp(keys ...string) time.Time {
	s := o.text(keys...)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC()
	}
	return time.Time{}
}

func (o object) allNull() bool {
	for _, v := range o {
		if !isNull(v) {
			return false
		}
	}
	return true
}

func looksLikeBank(o object) bool {
	return o.raw("id", "bankName", "bank_name") != nil
}

func isNull(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null"))
}

func isArray(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '['
}

func isObject(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '{'
}
