package scraper

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Nasapan23/undetected-scrape-api/api/schemas"
)

// extract pulls structured content out of the rendered page. The DOM is read
// once as HTML and parsed offline, so one driver call covers title, text and
// links.
func extract(ctx context.Context, page schemas.Page, includeHTML bool) (*schemas.ScrapeData, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	data := &schemas.ScrapeData{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
		Text:  normalizeWhitespace(doc.Find("body").Text()),
	}
	if includeHTML {
		data.HTML = html
	}

	base, _ := page.URL(ctx)
	baseURL, _ := url.Parse(base)

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		if baseURL != nil {
			if resolved, err := baseURL.Parse(href); err == nil {
				href = resolved.String()
			}
		}
		if !seen[href] {
			seen[href] = true
			data.Links = append(data.Links, href)
		}
	})

	return data, nil
}

// normalizeWhitespace collapses runs of whitespace so content length checks
// measure text, not markup formatting.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
