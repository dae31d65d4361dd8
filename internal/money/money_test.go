package money

import "testing"

func TestFormatZeroDecimalCurrency(t *testing.T) {
	f := NewFormatter("MMK", 0)

	got := f.Format(1500)
	if got != "1,500 MMK" {
		t.Fatalf("unexpected format: %q", got)
	}
	if f.Format(0) != "0 MMK" {
		t.Fatalf("unexpected zero format: %q", f.Format(0))
	}
}

func TestFormatTwoDecimalCurrency(t *testing.T) {
	f := NewFormatter("USD", 2)

	if got := f.Format(1500); got != "15.00 USD" {
		t.Fatalf("unexpected format: %q", got)
	}
	if got := f.Format(1234567); got != "12,345.67 USD" {
		t.Fatalf("unexpected format: %q", got)
	}
}

func TestFormatNegative(t *testing.T) {
	f := NewFormatter("MMK", 0)
	if got := f.Format(-2500); got != "-2,500 MMK" {
		t.Fatalf("unexpected format: %q", got)
	}
}
