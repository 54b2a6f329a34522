package parser

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Shared DOM helpers used by more than one strategy.

var srcsetURLRe = regexp.MustCompile(`[^\s,]+`)

// lazy-load attributes in order of preference
var imageAttrs = []string{
	"src",
	"data-src",
	"data-lazy-src",
	"data-original",
	"data-image",
	"data-lazy",
	"data-srcset",
	"srcset",
}

func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// imageURL extracts a usable image URL from an <img>-like selection,
// checking lazy-load attributes and srcset variants.
func imageURL(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	for _, attr := range imageAttrs {
		value, ok := sel.Attr(attr)
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		if attr == "srcset" || attr == "data-srcset" {
			if first := srcsetURLRe.FindString(value); first != "" {
				return strings.TrimSpace(first)
			}
			continue
		}
		return strings.TrimSpace(value)
	}
	return ""
}

var imageSkipPatterns = []string{
	"logo", "icon", "favicon", "sprite", "placeholder",
	"banner", "header", "footer", "nav", "menu",
	".svg", ".ico", "data:image", "base64",
	"chevron", "arrow", "close", "search", "cart",
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif"}

// isProductImage filters out logos, icons and other chrome that share
// markup with real product images.
func isProductImage(imgURL string) bool {
	if imgURL == "" {
		return false
	}
	lower := strings.ToLower(imgURL)
	for _, pattern := range imageSkipPatterns {
		if strings.Contains(lower, pattern) {
			return false
		}
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	for _, keyword := range []string{"product", "item", "image", "photo", "picture", "thumb"} {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	if len(imgURL) < 20 || strings.Contains(lower, "/icons/") {
		return false
	}
	return len(imgURL) > 10
}

// attrOrText prefers a content-style attribute over rendered text, the
// way microdata and meta markup carry machine values.
func attrOrText(sel *goquery.Selection, attrs ...string) string {
	for _, attr := range attrs {
		if value, ok := sel.Attr(attr); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return cleanText(sel.Text())
}
