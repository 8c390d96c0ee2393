// Package format renders money for display.
package format

import (
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Symbol is the Bangladeshi taka sign.
const Symbol = "৳"

// Formatter renders amounts with the digit grouping of one locale.
type Formatter struct {
	p *message.Printer
}

// New returns a Formatter for a BCP 47 tag; empty or invalid tags use English.
func New(lang string) *Formatter {
	tag := language.English
	if lang != "" {
		if t, err := language.Parse(lang); err == nil {
			tag = t
		}
	}
	return &Formatter{p: message.NewPrinter(tag)}
}

// Currency renders v as ৳ followed by the grouped amount, with at most two
// fraction digits. NaN and ±Inf render as ৳0.
func (f *Formatter) Currency(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Symbol + "0"
	}
	s := f.p.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
	if strings.HasPrefix(s, "-") {
		return "-" + Symbol + s[1:]
	}
	return Symbol + s
}

// CurrencyPtr is Currency for an optional amount; nil renders as ৳0.
func (f *Formatter) CurrencyPtr(v *float64) string {
	if v == nil {
		return Symbol + "0"
	}
	return f.Currency(*v)
}

var english = New("en")

// Currency formats v with English grouping.
func Currency(v float64) string { return english.Currency(v) }

// CurrencyPtr formats v with English grouping; nil renders as ৳0.
func CurrencyPtr(v *float64) string { return english.CurrencyPtr(v) }
