package money

import (
	"fmt"
	"strings"
)

// Amounts are int64 minor units everywhere in the system. A Formatter
// renders them for receipts and exports according to the deployment
// currency's exponent; zero-decimal currencies (MMK, JPY) get no
// fraction part at all.
type Formatter struct {
	Code     string
	Exponent int
}

func NewFormatter(code string, exponent int) Formatter {
	if exponent < 0 {
		exponent = 0
	}
	return Formatter{Code: code, Exponent: exponent}
}

func (f Formatter) pow10() int64 {
	n := int64(1)
	for i := 0; i < f.Exponent; i++ {
		n *= 10
	}
	return n
}

// Format renders minor units as a display string, e.g. 1500 -> "1,500 MMK"
// at exponent 0, or 1500 -> "15.00 USD" at exponent 2.
func (f Formatter) Format(minor int64) string {
	neg := minor < 0
	if neg {
		minor = -minor
	}
	unit := f.pow10()
	whole := minor / unit
	frac := minor % unit

	s := groupThousands(whole)
	if f.Exponent > 0 {
		s = fmt.Sprintf("%s.%0*d", s, f.Exponent, frac)
	}
	if neg {
		s = "-" + s
	}
	if f.Code != "" {
		s = s + " " + f.Code
	}
	return s
}

func groupThousands(n int64) string {
	digits := fmt.Sprintf("%d", n)
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	rem := len(digits) % 3
	if rem > 0 {
		b.WriteString(digits[:rem])
	}
	for i := rem; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
