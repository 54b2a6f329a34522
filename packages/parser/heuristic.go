package parser

import (
	"net/url"
	"regexp"
	"strings"

	"extractionworker/packages/domain"

	"github.com/PuerkitoBio/goquery"
)

// heuristicStrategy is the lowest-confidence fallback: anchors wrapping
// an image whose href looks like a product page, with price text found
// in a nearby ancestor. Only consulted when no structured signal exists.
type heuristicStrategy struct{}

func (heuristicStrategy) Name() string { return "heuristic" }

var productURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)/product[/-]`),
	regexp.MustCompile(`(?i)/products/`),
	regexp.MustCompile(`(?i)/item[/-]`),
	regexp.MustCompile(`(?i)/p/`),
	regexp.MustCompile(`(?i)/dp/`),
	regexp.MustCompile(`(?i)[?&]pid=`),
	regexp.MustCompile(`(?i)[?&]id=`),
	regexp.MustCompile(`(?i)productId=`),
}

var urlBlacklist = []string{
	"login", "signin", "register", "cart", "checkout",
	"account", "help", "support", "contact", "about",
	"terms", "privacy", "policy", "blog", "news",
}

var genericTitles = map[string]struct{}{
	"home": {}, "about": {}, "contact": {}, "cart": {},
	"login": {}, "search": {}, "more": {}, "view": {},
	"click here": {}, "menu": {},
}

var priceClassRe = regexp.MustCompile(`(?i)price|cost|amount`)

func (s heuristicStrategy) Attempt(doc *goquery.Document, base *url.URL) []domain.Product {
	var products []domain.Product

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		img := link.Find("img").First()
		if img.Length() == 0 {
			return
		}

		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || href == "#" || strings.HasPrefix(href, "javascript:") {
			return
		}
		productURL := resolveURL(base, href)
		if !looksLikeProductURL(productURL) || isBlacklistedURL(productURL) {
			return
		}

		priceText := nearbyPriceText(link)
		if priceText == "" {
			return
		}

		title, _ := link.Attr("title")
		if title == "" {
			title, _ = img.Attr("alt")
		}
		if title == "" {
			title = link.Text()
		}
		title = cleanText(title)
		if title == "" || isGenericTitle(title) {
			return
		}

		p := domain.Product{
			Name:     title,
			URL:      productURL,
			Currency: "USD",
		}
		if raw := imageURL(img); raw != "" && isProductImage(raw) {
			p.ImageURL = resolveURL(base, raw)
		}
		if value, currency := ParsePrice(priceText); value != nil {
			p.Price = value
			p.Currency = currency
			p.OriginalPrice = cleanText(priceText)
		}

		products = append(products, p)
	})

	return products
}

// nearbyPriceText walks up to 3 ancestor levels looking for an element
// whose class mentions a price.
func nearbyPriceText(sel *goquery.Selection) string {
	current := sel
	for i := 0; i < 3 && current.Length() > 0; i++ {
		found := ""
		current.Find("[class]").EachWithBreak(func(_ int, el *goquery.Selection) bool {
			class, _ := el.Attr("class")
			if priceClassRe.MatchString(class) {
				if text := cleanText(el.Text()); text != "" {
					found = text
					return false
				}
			}
			return true
		})
		if found != "" {
			return found
		}
		current = current.Parent()
	}
	return ""
}

func looksLikeProductURL(rawURL string) bool {
	for _, pattern := range productURLPatterns {
		if pattern.MatchString(rawURL) {
			return true
		}
	}
	return false
}

func isBlacklistedURL(rawURL string) bool {
	lower := strings.ToLower(rawURL)
	for _, keyword := range urlBlacklist {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func isGenericTitle(title string) bool {
	_, ok := genericTitles[strings.ToLower(title)]
	return ok
}
