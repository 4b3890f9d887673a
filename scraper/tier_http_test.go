package scraper

import "testing"

func TestExtractTitle(t *testing.T) {
	html := []byte(`<html><head><title>  Example Page </title></head><body></body></html>`)
	if got := extractTitle(html); got != "Example Page" {
		t.Fatalf("extractTitle() = %q, want %q", got, "Example Page")
	}
}

func TestExtractTitleMissing(t *testing.T) {
	html := []byte(`<html><head></head><body>no title here</body></html>`)
	if got := extractTitle(html); got != "" {
		t.Fatalf("expected empty title, got %q", got)
	}
}

func TestIsAssetURL(t *testing.T) {
	cases := map[string]bool{
		"https://cdn.example.com/logo.png":        true,
		"https://api.example.com/v1/search.json":  false,
		"https://fonts.example.com/font.woff2":    true,
		"https://example.com/api/data":            false,
	}
	for u, want := range cases {
		if got := isAssetURL(u); got != want {
			t.Errorf("isAssetURL(%q) = %v, want %v", u, got, want)
		}
	}
}
