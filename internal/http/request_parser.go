package http

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"bankfees/internal/catalog"
	"bankfees/internal/core"
	"bankfees/internal/services"
)

// paramError reports a query parameter that could not be read.
type paramError struct {
	Name  string
	Value string
	Err   error
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Name, e.Value, e.Err)
}

func (e *paramError) Unwrap() error { return e.Err }

// ParseAccountsQuery reads the listing parameters of GET /api/accounts:
// search, accountType and bankType (repeatable or comma-separated),
// maxMinimumBalance, maxMonthlyTotal, sortBy, order and lang. defaults=true
// starts from catalog.DefaultFilter; explicit bounds still win.
func ParseAccountsQuery(q url.Values, defaultLang string) (services.Query, error) {
	f := catalog.Filter{}
	if v, ok, err := boolParam(q, "defaults"); err != nil {
		return services.Query{}, err
	} else if ok && v {
		f = catalog.DefaultFilter()
	}
	f = f.WithSearch(sanitizeInput(q.Get("search")))

	if types := listParam(q, "accountType"); len(types) > 0 {
		ts := make([]core.AccountType, len(types))
		for i, t := range types {
			ts[i] = core.AccountType(t)
		}
		f = f.WithAccountTypes(ts...)
	}
	if types := listParam(q, "bankType"); len(types) > 0 {
		ts := make([]core.BankType, len(types))
		for i, t := range types {
			ts[i] = core.BankType(t)
		}
		f = f.WithBankTypes(ts...)
	}

	if v, ok, err := floatParam(q, "maxMinimumBalance"); err != nil {
		return services.Query{}, err
	} else if ok {
		f = f.WithMaxMinimumBalance(v)
	}
	if v, ok, err := floatParam(q, "maxMonthlyTotal"); err != nil {
		return services.Query{}, err
	} else if ok {
		f = f.WithMaxMonthlyTotal(v)
	}

	key, err := catalog.ParseSortKey(firstParam(q, "sortBy", "sort"))
	if err != nil {
		return services.Query{}, err
	}

	lang := strings.TrimSpace(q.Get("lang"))
	if lang == "" {
		lang = defaultLang
	}

	return services.Query{
		Filter:    f,
		SortKey:   key,
		Direction: catalog.ParseDirection(firstParam(q, "order", "sortOrder")),
		Lang:      lang,
	}, nil
}

// ParseUsageProfile overlays the query parameters on base, normally the fee
// policy's default profile. Counts may be negative; the fee policy clamps them.
func ParseUsageProfile(q url.Values, base core.UsageProfile) (core.UsageProfile, error) {
	u := base

	counts := []struct {
		name string
		dst  *int
	}{
		{"monthlyAtmOtherBank", &u.MonthlyATMOtherBank},
		{"monthlyNspbTransfers", &u.MonthlyNSPBTransfers},
		{"monthlyBeftnTransfers", &u.MonthlyBEFTNTransfers},
		{"monthlyStatements", &u.MonthlyStatements},
		{"monthlyCheckbooks", &u.MonthlyCheckbooks},
	}
	for _, c := range counts {
		v := strings.TrimSpace(q.Get(c.name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return core.UsageProfile{}, &paramError{Name: c.name, Value: v, Err: err}
		}
		*c.dst = n
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"includeOnlineBanking", &u.OnlineBanking},
		{"includeSms", &u.SMS},
		{"includeDebitCard", &u.DebitCard},
		{"includeCreditCard", &u.CreditCard},
		{"includeCheckbook", &u.Checkbook},
		{"includeStatements", &u.Statements},
	}
	for _, f := range flags {
		b, ok, err := boolParam(q, f.name)
		if err != nil {
			return core.UsageProfile{}, err
		}
		if ok {
			*f.dst = b
		}
	}
	return u, nil
}

// ParseSelection reads the banks parameter of GET /api/compare, then applies
// each toggle parameter in order. toggle alone may build the selection.
func ParseSelection(q url.Values) (catalog.Selection, error) {
	banks := strings.Join(q["banks"], ",")
	toggles := listParam(q, "toggle")
	if len(toggles) == 0 {
		return catalog.ParseSelection(banks)
	}

	var sel catalog.Selection
	if len(listParam(q, "banks")) > 0 {
		var err error
		if sel, err = catalog.ParseSelection(banks); err != nil {
			return catalog.Selection{}, err
		}
	}
	for _, id := range toggles {
		sel = sel.Toggle(id)
	}
	if sel.Len() == 0 {
		return catalog.Selection{}, core.ErrEmptySelection
	}
	return sel, nil
}

func boolParam(q url.Values, name string) (bool, bool, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, &paramError{Name: name, Value: v, Err: err}
	}
	return b, true, nil
}

func floatParam(q url.Values, name string) (float64, bool, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false, &paramError{Name: name, Value: v, Err: err}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, &paramError{Name: name, Value: v, Err: fmt.Errorf("not a finite number")}
	}
	return f, true, nil
}

// listParam collects a repeatable parameter, splitting comma-separated values.
func listParam(q url.Values, name string) []string {
	var out []string
	for _, raw := range q[name] {
		for _, part := range strings.Split(raw, ",") {
			if v := sanitizeInput(part); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func firstParam(q url.Values, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(q.Get(n)); v != "" {
			return v
		}
	}
	return ""
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
