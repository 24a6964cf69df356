package sitemap

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Entry is one URL in the sitemap.
type Entry struct {
	Path       string
	LastMod    time.Time
	ChangeFreq string
	Priority   string
}

type urlset struct {
	XMLName xml.Name `xml:"urlset"`
	Xmlns   string   `xml:"xmlns,attr"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// XML renders a sitemap for the given entries rooted at baseURL.
func XML(baseURL string, entries []Entry) ([]byte, error) {
	base := strings.TrimRight(baseURL, "/")

	set := urlset{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, e := range entries {
		u := xmlURL{
			Loc:        base + e.Path,
			ChangeFreq: e.ChangeFreq,
			Priority:   e.Priority,
		}
		if !e.LastMod.IsZero() {
			u.LastMod = e.LastMod.UTC().Format("2006-01-02")
		}
		set.URLs = append(set.URLs, u)
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sitemap: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

// Robots renders robots.txt pointing crawlers at the sitemap.
func Robots(baseURL string) []byte {
	base := strings.TrimRight(baseURL, "/")
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Disallow: /api/\n")
	b.WriteString("Disallow: /admin/\n")
	b.WriteString("Sitemap: " + base + "/sitemap.xml\n")
	return []byte(b.String())
}
