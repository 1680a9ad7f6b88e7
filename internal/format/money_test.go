package format

import (
	"testing"

	"bilancio/internal/core"
)

func TestMoney(t *testing.T) {
	tests := []struct {
		locale string
		symbol string
		cents  int64
		want   string
	}{
		{"es-AR", "$", 123450, "$ 1.234,50"},
		{"es-AR", "$", 0, "$ 0,00"},
		{"es-AR", "$", -5007, "-$ 50,07"},
		{"en", "$", 123456789, "$ 1,234,567.89"},
		{"it", "€", 99, "0,99 €"},
		{"en", "", 1000, "10.00"},
		{"xx", "$", 100, "$ 1,00"},
	}
	for _, tt := range tests {
		f := New(tt.locale, tt.symbol)
		if got := f.Money(core.Money{Cents: tt.cents}); got != tt.want {
			t.Errorf("%s Money(%d) = %q, want %q", tt.locale, tt.cents, got, tt.want)
		}
	}
}

func TestAmountAndCount(t *testing.T) {
	f := New("es-AR", "$")
	if got := f.Amount(1000.5); got != "$ 1.000,50" {
		t.Fatalf("Amount = %q", got)
	}
	if got := New("en", "$").Count(1234567); got != "1,234,567" {
		t.Fatalf("Count = %q", got)
	}
}

func TestSupported(t *testing.T) {
	for _, name := range Locales() {
		if !Supported(name) {
			t.Fatalf("%s listed but not supported", name)
		}
	}
	if Supported("fr") {
		t.Fatalf("fr should not be supported")
	}
}
