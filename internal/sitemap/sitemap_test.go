package sitemap

import (
	"strings"
	"testing"
	"time"
)

func TestXML(t *testing.T) {
	entries := []Entry{
		{Path: "/", ChangeFreq: "daily", Priority: "1.0"},
		{Path: "/products/abc", LastMod: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)},
	}

	out, err := XML("https://shop.example.com/", entries)
	if err != nil {
		t.Fatalf("XML() error: %v", err)
	}

	s := string(out)
	for _, want := range []string{
		`<loc>https://shop.example.com/</loc>`,
		`<loc>https://shop.example.com/products/abc</loc>`,
		`<lastmod>2025-03-14</lastmod>`,
		`<changefreq>daily</changefreq>`,
		`xmlns="http://www.sitemaps.org/schemas/sitemap/0.9"`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("sitemap missing %q:\n%s", want, s)
		}
	}
}

func TestRobots(t *testing.T) {
	out := string(Robots("https://shop.example.com"))

	if !strings.Contains(out, "Sitemap: https://shop.example.com/sitemap.xml") {
		t.Errorf("robots.txt missing sitemap line:\n%s", out)
	}
	if !strings.Contains(out, "Disallow: /api/") {
		t.Errorf("robots.txt missing api disallow:\n%s", out)
	}
}
