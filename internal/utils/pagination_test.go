package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestPageBounds(t *testing.T) {
	cases := []struct {
		page, size, max       int
		wantP, wantS, wantOff int
	}{
		{0, 0, 0, 1, DefaultPageSize, 0},
		{-3, 5, 0, 1, 5, 0},
		{3, 10, 100, 3, 10, 20},
		{2, 500, 100, 2, 100, 100},
		{4, 7, 0, 4, 7, 21},
	}
	for _, tc := range cases {
		p, s, off := PageBounds(tc.page, tc.size, tc.max)
		if p != tc.wantP || s != tc.wantS || off != tc.wantOff {
			t.Fatalf("PageBounds(%d,%d,%d) = (%d,%d,%d); want (%d,%d,%d)",
				tc.page, tc.size, tc.max, p, s, off, tc.wantP, tc.wantS, tc.wantOff)
		}
	}
}
