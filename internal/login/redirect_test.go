package login_test

import (
	"testing"

	"github.com/dropDatabas3/linkpass/internal/login"
)

func TestBuildRedirectURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"plain", "https://partner.example/cb", "https://partner.example/cb?redirect_token=XYZ"},
		{"trailing slash", "https://partner.example/cb/", "https://partner.example/cb?redirect_token=XYZ"},
		{"existing query", "https://partner.example/cb?ref=1", "https://partner.example/cb?ref=1&redirect_token=XYZ"},
		{"trailing ampersand", "https://partner.example/cb?ref=1&", "https://partner.example/cb?ref=1&redirect_token=XYZ"},
		{"trailing question mark", "https://partner.example/cb?", "https://partner.example/cb?redirect_token=XYZ"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := login.BuildRedirectURL(tc.url, "redirect_token", "XYZ")
			if got != tc.want {
				t.Errorf("BuildRedirectURL(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}
