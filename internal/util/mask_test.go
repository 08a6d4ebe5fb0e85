package util

import "testing"

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"a@b.com":          "a@b.com",
		"alice@partner.io": "a…@p….io",
		"":                 "",
		"ab":               "***",
		"noatsign":         "n…n",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Errorf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("abc"); got != "***" {
		t.Errorf("short secret: got %q", got)
	}
	if got := MaskSecret("abcdefgh"); got != "abcd…" {
		t.Errorf("long secret: got %q", got)
	}
}
