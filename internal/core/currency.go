package core

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Currency formats Money for display with locale-aware digit grouping.
type Currency struct {
	Code    string
	unit    currency.Unit
	tag     language.Tag
	printer *message.Printer
}

// homeLocale is the locale used to group digits for each currency.
var homeLocale = map[string]language.Tag{
	"USD": language.AmericanEnglish,
	"EUR": language.German,
	"GBP": language.BritishEnglish,
	"SEK": language.Swedish,
	"CHF": language.German,
	"JPY": language.Japanese,
	"CAD": language.MustParse("en-CA"),
	"AUD": language.MustParse("en-AU"),
}

// NewCurrency returns a formatter for an ISO currency code. Unknown codes
// format with US English grouping and the code as symbol.
func NewCurrency(code string) Currency {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}
	tag, ok := homeLocale[code]
	if !ok {
		tag = language.AmericanEnglish
	}
	return Currency{Code: code, unit: unit, tag: tag, printer: message.NewPrinter(tag)}
}

// KnownCurrency reports whether the code is a valid ISO 4217 currency.
func KnownCurrency(code string) bool {
	_, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	return err == nil
}

// symbolOverrides covers currencies where the x/text narrow symbol is not
// what users expect.
var symbolOverrides = map[string]string{
	"SEK": "kr",
	"NOK": "kr",
	"DKK": "kr",
}

func (c Currency) symbol() string {
	if sym, ok := symbolOverrides[c.Code]; ok {
		return sym
	}
	if c.unit.String() != c.Code {
		return c.Code
	}
	return c.printer.Sprint(currency.NarrowSymbol(c.unit))
}

// prefix reports whether the symbol goes before the amount. x/text does not
// expose symbol placement, so it is kept as a list.
func (c Currency) prefix() bool {
	switch c.Code {
	case "USD", "GBP", "JPY", "CAD", "AUD":
		return true
	default:
		return false
	}
}

// Number formats the amount with grouping and without a symbol. Whole
// amounts have no fraction digits.
func (c Currency) Number(m Money) string {
	if m.Cents%100 == 0 {
		return c.printer.Sprint(number.Decimal(m.Cents/100, number.MaxFractionDigits(0)))
	}
	return c.printer.Sprint(number.Decimal(m.Float(), number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// Format formats the amount with the currency symbol, e.g. "$1,234".
func (c Currency) Format(m Money) string {
	if c.prefix() {
		return c.symbol() + c.Number(m)
	}
	return c.Number(m) + " " + c.symbol()
}

// FormatDate renders a date the way en-US toLocaleDateString does (M/D/YYYY).
func FormatDate(d Date) string {
	if d.IsZero() {
		return ""
	}
	return d.Format("1/2/2006")
}
