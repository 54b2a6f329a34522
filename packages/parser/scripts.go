package parser

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"extractionworker/packages/domain"

	"github.com/PuerkitoBio/goquery"
)

// scriptStrategy mines non-ld+json script blocks: application/json
// payloads and the serialized state single-page storefronts assign to
// globals like window.__INITIAL_STATE__.
type scriptStrategy struct{}

func (scriptStrategy) Name() string { return "scripts" }

var stateAssignRe = regexp.MustCompile(`(?:window\.__INITIAL_STATE__|window\.__PRELOADED_STATE__|__NEXT_DATA__)\s*=\s*\{`)

var productArrayRe = regexp.MustCompile(`"(?:products|items|results|catalog|list)"\s*:\s*\[`)

func (s scriptStrategy) Attempt(doc *goquery.Document, base *url.URL) []domain.Product {
	var products []domain.Product

	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if t, _ := sel.Attr("type"); t == "application/ld+json" {
			return
		}
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		// whole-block JSON, the application/json case
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err == nil {
			switch data.(type) {
			case map[string]any, []any:
				products = append(products, findProducts(data, base)...)
			}
		}

		// keyed arrays are mined from the raw text either way: a valid
		// block can still hold products the typed walk cannot see
		products = append(products, stateObjects(raw, base)...)
		products = append(products, keyedArrays(raw, base)...)
	})

	return products
}

// stateObjects decodes the object assigned to a known state global.
func stateObjects(script string, base *url.URL) []domain.Product {
	var products []domain.Product
	for _, loc := range stateAssignRe.FindAllStringIndex(script, -1) {
		blob := balancedJSON(script[loc[1]-1:], '{', '}')
		if blob == "" {
			continue
		}
		var data any
		if err := json.Unmarshal([]byte(blob), &data); err != nil {
			continue
		}
		products = append(products, findProducts(data, base)...)
	}
	return products
}

// keyedArrays pulls arrays stored under product-ish keys out of
// otherwise unparseable script text.
func keyedArrays(script string, base *url.URL) []domain.Product {
	var products []domain.Product
	for _, loc := range productArrayRe.FindAllStringIndex(script, -1) {
		blob := balancedJSON(script[loc[1]-1:], '[', ']')
		if blob == "" {
			continue
		}
		var items []any
		if err := json.Unmarshal([]byte(blob), &items); err != nil {
			continue
		}
		for _, item := range items {
			node, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if found := findProducts(node, base); len(found) > 0 {
				products = append(products, found...)
				continue
			}
			if p, ok := productFromDict(node, base); ok {
				products = append(products, p)
			}
		}
	}
	return products
}

// balancedJSON returns the prefix of s spanning one balanced
// open..close run. s must start at the opener. Brackets inside string
// literals are not tracked; a blob that trips on one simply fails to
// decode and is skipped.
func balancedJSON(s string, opener, closer byte) string {
	if len(s) == 0 || s[0] != opener {
		return ""
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case opener:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}

// productFromDict maps a loosely shaped JSON object onto a Product
// using the field aliases storefront state blobs actually use.
func productFromDict(node map[string]any, base *url.URL) (domain.Product, bool) {
	p := domain.Product{Currency: "USD"}

	for _, key := range []string{"name", "title", "productName", "product_name"} {
		if s, ok := node[key].(string); ok && cleanText(s) != "" {
			p.Name = cleanText(s)
			break
		}
	}
	for _, key := range []string{"url", "link", "productUrl", "product_url"} {
		if s, ok := node[key].(string); ok && strings.TrimSpace(s) != "" {
			p.URL = resolveURL(base, s)
			break
		}
	}
	for _, key := range []string{"image", "imageUrl", "img", "thumbnail"} {
		if img := imageFromJSON(node[key]); img != "" {
			if isProductImage(img) {
				p.ImageURL = resolveURL(base, img)
			}
			break
		}
	}
	for _, key := range []string{"price", "cost", "amount"} {
		value, ok := node[key]
		if !ok {
			continue
		}
		if f := floatFromJSON(value); f != nil {
			p.Price = f
			p.OriginalPrice = priceDisplay(value)
			if s, ok := value.(string); ok {
				_, p.Currency = ParsePrice(s)
			}
		}
		break
	}

	return p, p.Name != ""
}
