package catalog

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"bankfees/internal/core"
)

type (
	// SortKey names the account field a listing is ordered by.
	SortKey string
	// Direction orders a listing ascending or descending.
	Direction string
)

const (
	SortByBankName       SortKey = "bankName"
	SortByMinimumBalance SortKey = "minimumBalance"
	SortByMonthlyTotal   SortKey = "monthlyTotal"
	SortByYearlyTotal    SortKey = "yearlyTotal"

	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// ParseSortKey validates a sort key. Empty input selects monthlyTotal.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.TrimSpace(s)); k {
	case "":
		return SortByMonthlyTotal, nil
	case SortByBankName, SortByMinimumBalance, SortByMonthlyTotal, SortByYearlyTotal:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrInvalidSortKey, s)
	}
}

// ParseDirection reads "asc" or "desc", case-insensitively. Anything else is
// ascending.
func ParseDirection(s string) Direction {
	if strings.EqualFold(strings.TrimSpace(s), string(Descending)) {
		return Descending
	}
	return Ascending
}

// Sort returns a stably sorted copy of accounts. Bank names compare with the
// collation rules of lang (a BCP 47 tag, "en" when empty or invalid); the
// numeric keys compare by value. Descending order reverses the comparison,
// so tied accounts keep their input order in both directions.
func Sort(accounts []core.CalculatedAccount, key SortKey, dir Direction, lang string) ([]core.CalculatedAccount, error) {
	compare, err := comparator(key, lang)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(accounts)
	if dir == Descending {
		slices.SortStableFunc(out, func(a, b core.CalculatedAccount) int { return compare(b, a) })
	} else {
		slices.SortStableFunc(out, compare)
	}
	return out, nil
}

func comparator(key SortKey, lang string) (func(a, b core.CalculatedAccount) int, error) {
	switch key {
	case SortByBankName:
		c := collate.New(parseLanguage(lang))
		return func(a, b core.CalculatedAccount) int {
			return c.CompareString(a.BankName, b.BankName)
		}, nil
	case SortByMinimumBalance:
		return func(a, b core.CalculatedAccount) int {
			return cmp.Compare(a.MinimumBalance.Value(), b.MinimumBalance.Value())
		}, nil
	case SortByMonthlyTotal:
		return func(a, b core.CalculatedAccount) int {
			return cmp.Compare(a.MonthlyTotal, b.MonthlyTotal)
		}, nil
	case SortByYearlyTotal:
		return func(a, b core.CalculatedAccount) int {
			return cmp.Compare(a.YearlyTotal, b.YearlyTotal)
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidSortKey, key)
	}
}

func parseLanguage(lang string) language.Tag {
	if lang == "" {
		return language.English
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return language.English
	}
	return tag
}
