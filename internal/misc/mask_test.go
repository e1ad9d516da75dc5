package misc

import "testing"

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"":                   "",
		"short":              "*****",
		"AIzaSyExample12345": "AIza**********2345",
	}
	for in, want := range cases {
		if got := MaskSecret(in); got != want {
			t.Fatalf("MaskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskQueryParam(t *testing.T) {
	got := MaskQueryParam("https://example.test/v1/models/m:generateContent?key=AIzaSyExample12345", "key")
	want := "https://example.test/v1/models/m:generateContent?key=AIza%2A%2A%2A%2A%2A%2A%2A%2A%2A%2A2345"
	if got != want {
		t.Fatalf("unexpected masked url %q", got)
	}
}
