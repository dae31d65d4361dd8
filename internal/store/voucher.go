package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatVoucher renders a voucher number as prefix + YYYYMMDD (UTC) +
// zero-padded sequence. The sequence is padded to at least three
// digits and simply grows wider past 999, so ordering within a day is
// preserved.
func FormatVoucher(prefix string, at time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%03d", prefix, at.UTC().Format("20060102"), seq)
}

// VoucherDay returns the UTC day key used for per-day sequence counters.
func VoucherDay(at time.Time) string {
	return at.UTC().Format("20060102")
}

// ParseVoucherSeq extracts the day key and sequence from a voucher
// number. Restore uses it to re-seed counters past the highest
// restored voucher of each day.
func ParseVoucherSeq(prefix string, voucher string) (day string, seq int64, ok bool) {
	rest, found := strings.CutPrefix(voucher, prefix)
	if !found || len(rest) < 11 {
		return "", 0, false
	}
	day = rest[:8]
	if _, err := time.Parse("20060102", day); err != nil {
		return "", 0, false
	}
	seq, err := strconv.ParseInt(rest[8:], 10, 64)
	if err != nil || seq < 1 {
		return "", 0, false
	}
	return day, seq, true
}
