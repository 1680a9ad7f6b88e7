// Package format renders money amounts for the web, CLI and TUI surfaces.
package format

import (
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"bilancio/internal/core"
)

// DefaultLocale matches the household the tool was first written for.
const DefaultLocale = "es-AR"

type locale struct {
	pattern     string // humanize.FormatFloat pattern
	symbolAfter bool
}

var locales = map[string]locale{
	"en":    {pattern: "#,###.##"},
	"it":    {pattern: "#.###,##", symbolAfter: true},
	"es-AR": {pattern: "#.###,##"},
}

// Supported reports whether name is a known locale.
func Supported(name string) bool {
	_, ok := locales[name]
	return ok
}

// Locales lists the known locale names, sorted.
func Locales() []string {
	names := make([]string, 0, len(locales))
	for name := range locales {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Formatter renders Money with a fixed locale and currency symbol.
type Formatter struct {
	loc    locale
	symbol string
}

// New returns a Formatter for the named locale, falling back to
// DefaultLocale for unknown names.
func New(localeName, symbol string) Formatter {
	loc, ok := locales[localeName]
	if !ok {
		loc = locales[DefaultLocale]
	}
	return Formatter{loc: loc, symbol: strings.TrimSpace(symbol)}
}

// Money always renders two fraction digits, e.g. "$ 1.234,50" for es-AR.
func (f Formatter) Money(m core.Money) string {
	neg := m.Cents < 0
	cents := m.Cents
	if neg {
		cents = -cents
	}
	num := humanize.FormatFloat(f.loc.pattern, float64(cents)/100)

	var s string
	switch {
	case f.symbol == "":
		s = num
	case f.loc.symbolAfter:
		s = num + " " + f.symbol
	default:
		s = f.symbol + " " + num
	}
	if neg {
		return "-" + s
	}
	return s
}

// Amount renders a plain float amount, as stored in a document.
func (f Formatter) Amount(v float64) string {
	return f.Money(core.MoneyFromFloat(v))
}

// Count renders an integer with the locale's thousands separator.
func (f Formatter) Count(n int) string {
	// "#,###.##" becomes "#,###.", which drops the fraction.
	return humanize.FormatInteger(f.loc.pattern[:len(f.loc.pattern)-2], n)
}
