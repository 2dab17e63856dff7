package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"kasbot/internal/config"
	"kasbot/internal/entities"
)

const (
	maxBullets         = 40
	minBulletRunes     = 4
	defaultManualTitle = "دليل المنتج"
)

// Containers whose list items are treated as spec bullets.
var bulletContainers = []string{"woocommerce-product-details__short-description", "entry-content", "product"}

// Containers tried in order for the long description.
var contentContainers = []string{"woocommerce-Tabs-panel", "entry-content", "product"}

var (
	spaceRun  = regexp.MustCompile(`\s+`)
	bulletRun = regexp.MustCompile(`[•·]+`)
)

// Scraper fetches product pages and extracts what the bot may quote from them.
type Scraper struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

func NewScraper(cfg config.ScraperConfig) *Scraper {
	return &Scraper{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
	}
}

// Fetch downloads and parses the product's page.
func (s *Scraper) Fetch(ctx context.Context, p entities.Product) (entities.ScrapedPage, error) {
	if p.URL == "" {
		return entities.ScrapedPage{}, fmt.Errorf("product %s has no url", p.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return entities.ScrapedPage{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return entities.ScrapedPage{}, fmt.Errorf("fetching %s: %w", p.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return entities.ScrapedPage{}, fmt.Errorf("HTTP %d from %s", resp.StatusCode, p.URL)
	}

	page, err := ParseProductPage(io.LimitReader(resp.Body, s.maxBody), p.URL)
	if err != nil {
		return entities.ScrapedPage{}, err
	}
	page.ProductID = p.ID
	page.FetchedAt = time.Now().UTC()
	return page, nil
}

// ParseProductPage extracts title, price, text, bullets and PDF links from a
// WooCommerce style product page. Relative links resolve against pageURL.
func ParseProductPage(r io.Reader, pageURL string) (entities.ScrapedPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return entities.ScrapedPage{}, fmt.Errorf("parse html: %w", err)
	}
	base, _ := url.Parse(pageURL)

	page := entities.ScrapedPage{URL: pageURL}
	if h1 := findFirst(doc, func(n *html.Node) bool { return isElement(n, "h1") }); h1 != nil {
		page.Title = cleanText(extractText(h1))
	}
	if price := findFirst(doc, func(n *html.Node) bool { return hasClass(n, "price") }); price != nil {
		page.Price = cleanText(extractText(price))
	}

	var shortDesc string
	if n := findFirst(doc, func(n *html.Node) bool { return hasClass(n, bulletContainers[0]) }); n != nil {
		shortDesc = cleanText(extractText(n))
	}
	var content string
	if n := findFirst(doc, func(n *html.Node) bool { return hasAnyClass(n, contentContainers...) }); n != nil {
		content = cleanText(extractText(n))
	}

	parts := make([]string, 0, 4)
	for _, s := range []string{page.Title, pricePart(page.Price), shortDesc, content} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	page.Text = cleanText(strings.Join(parts, " | "))
	page.Bullets = extractBullets(doc)
	page.PDFLinks = extractPDFLinks(doc, base)
	return page, nil
}

func pricePart(price string) string {
	if price == "" {
		return ""
	}
	return "السعر: " + price
}

func extractBullets(doc *html.Node) []string {
	var out []string
	seen := make(map[string]bool)
	walk(doc, func(n *html.Node) bool {
		if len(out) == maxBullets {
			return false
		}
		if !isElement(n, "li") || !hasAncestorClass(n, bulletContainers...) {
			return true
		}
		t := cleanText(extractText(n))
		key := strings.ToLower(t)
		if utf8.RuneCountInString(t) >= minBulletRunes && !seen[key] {
			seen[key] = true
			out = append(out, t)
		}
		return true
	})
	return out
}

func extractPDFLinks(doc *html.Node, base *url.URL) []entities.Manual {
	var out []entities.Manual
	seen := make(map[string]bool)
	walk(doc, func(n *html.Node) bool {
		if !isElement(n, "a") {
			return true
		}
		href := strings.TrimSpace(getAttr(n, "href"))
		if href == "" || !strings.Contains(strings.ToLower(href), ".pdf") {
			return true
		}
		if base != nil {
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		if seen[href] {
			return true
		}
		seen[href] = true
		title := cleanText(extractText(n))
		if title == "" {
			title = defaultManualTitle
		}
		out = append(out, entities.Manual{Title: title, URL: href})
		return true
	})
	return out
}

func cleanText(s string) string {
	s = spaceRun.ReplaceAllString(s, " ")
	s = bulletRun.ReplaceAllString(s, "-")
	return strings.TrimSpace(s)
}

// walk visits nodes depth first; returning false stops the whole walk.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

func findFirst(doc *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) bool {
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func hasAnyClass(n *html.Node, classes ...string) bool {
	for _, c := range classes {
		if hasClass(n, c) {
			return true
		}
	}
	return false
}

func hasAncestorClass(n *html.Node, classes ...string) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if hasAnyClass(p, classes...) {
			return true
		}
	}
	return false
}

// extractText concatenates text nodes, skipping scripts and styles.
func extractText(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "noscript") {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return strings.TrimSpace(b.String())
}
