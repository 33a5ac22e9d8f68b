package term

import "github.com/unilibs/uniwidth"

// runeWidth reports how many columns r occupies: 2 for East Asian Wide and
// fullwidth forms, 0 for combining marks and other zero-width scalars,
// 1 otherwise.
func runeWidth(r rune) int {
	return uniwidth.RuneWidth(r)
}

// StringWidth reports the total column width of s.
func StringWidth(s string) int {
	return uniwidth.StringWidth(s)
}
