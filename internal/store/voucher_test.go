package store

import (
	"testing"
	"time"
)

func TestFormatVoucher(t *testing.T) {
	at := time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC)

	if got := FormatVoucher("V", at, 7); got != "V20260831007" {
		t.Fatalf("unexpected voucher: %q", got)
	}
	if got := FormatVoucher("V", at, 1000); got != "V202608311000" {
		t.Fatalf("sequence past 999 must widen, got %q", got)
	}
}

func TestFormatVoucherUsesUTCDay(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	at := time.Date(2026, 9, 1, 2, 0, 0, 0, loc) // still Aug 31 in UTC

	if got := FormatVoucher("V", at, 1); got != "V20260831001" {
		t.Fatalf("expected UTC day, got %q", got)
	}
}

func TestParseVoucherSeq(t *testing.T) {
	day, seq, ok := ParseVoucherSeq("V", "V20260831012")
	if !ok || day != "20260831" || seq != 12 {
		t.Fatalf("unexpected parse: day=%q seq=%d ok=%v", day, seq, ok)
	}

	if _, _, ok := ParseVoucherSeq("V", "X20260831012"); ok {
		t.Fatalf("wrong prefix must not parse")
	}
	if _, _, ok := ParseVoucherSeq("V", "V2026083"); ok {
		t.Fatalf("short voucher must not parse")
	}
}
