package term

import "testing"

func TestRuneWidth(t *testing.T) {
	cases := []struct {
		r    rune
		want int
	}{
		{'a', 1},
		{'1', 1},
		{' ', 1},
		{'世', 2},
		{'あ', 2},
		{'가', 2},
		{'́', 0}, // combining acute
		{'​', 0}, // zero-width space
	}
	for _, tc := range cases {
		if got := runeWidth(tc.r); got != tc.want {
			t.Errorf("runeWidth(%q) = %d, want %d", tc.r, got, tc.want)
		}
	}
}

func TestStringWidth(t *testing.T) {
	cases := []struct {
		s    string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"世界", 4},
		{"a世b", 4},
	}
	for _, tc := range cases {
		if got := StringWidth(tc.s); got != tc.want {
			t.Errorf("StringWidth(%q) = %d, want %d", tc.s, got, tc.want)
		}
	}
}
