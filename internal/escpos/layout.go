package escpos

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// WideLayoutMin is the narrowest paper width that attempts single-line rows
const WideLayoutMin = 48

// spaces returns n spaces, or nothing when n is not positive
func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}

// rightJustify pads s so that it ends at column width
func rightJustify(s string, width int) string {
	return spaces(width-runewidth.StringWidth(s)) + s
}

// fits reports whether left and right share one line with at least one space between them
func fits(left, right string, width int) bool {
	return runewidth.StringWidth(left)+runewidth.StringWidth(right)+1 <= width
}

// row lays out a left and a right segment. The result is one line when the
// segments fit and wrap is false, otherwise the left segment alone followed by
// the right segment right-justified.
func row(left, right string, width int, wrap bool) []string {
	if wrap || !fits(left, right, width) {
		return []string{left, rightJustify(right, width)}
	}
	gap := width - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	return []string{left + spaces(gap) + right}
}
