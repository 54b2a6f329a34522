package parser

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"extractionworker/packages/domain"

	"github.com/PuerkitoBio/goquery"
)

// jsonldStrategy decodes schema.org Product objects embedded in
// application/ld+json script blocks. Highest precision: sites that ship
// structured data describe their own products in machine form.
type jsonldStrategy struct{}

func (jsonldStrategy) Name() string { return "jsonld" }

func (s jsonldStrategy) Attempt(doc *goquery.Document, base *url.URL) []domain.Product {
	var products []domain.Product

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			// Not every ld+json block is valid JSON in the wild.
			return true
		}
		products = append(products, findProducts(data, base)...)
		return true
	})

	return products
}

// findProducts recursively walks decoded JSON looking for Product
// objects, including ItemList/itemListElement wrappers and
// array-of-objects roots.
func findProducts(data any, base *url.URL) []domain.Product {
	var products []domain.Product

	switch node := data.(type) {
	case map[string]any:
		isList := isType(node, "ItemList")
		if isList {
			if items, ok := node["itemListElement"].([]any); ok {
				for _, item := range items {
					entry, ok := item.(map[string]any)
					if !ok {
						continue
					}
					if wrapped, ok := entry["item"].(map[string]any); ok {
						if p, ok := parseProductObject(wrapped, base); ok {
							products = append(products, p)
							continue
						}
					}
					if p, ok := parseProductObject(entry, base); ok {
						products = append(products, p)
					}
				}
			}
		}
		if isType(node, "Product") {
			if p, ok := parseProductObject(node, base); ok {
				products = append(products, p)
			}
		}
		for key, value := range node {
			if isList && key == "itemListElement" {
				continue
			}
			switch value.(type) {
			case map[string]any, []any:
				products = append(products, findProducts(value, base)...)
			}
		}
	case []any:
		for _, item := range node {
			products = append(products, findProducts(item, base)...)
		}
	}

	return products
}

func isType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return strings.Contains(t, want)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.Contains(s, want) {
				return true
			}
		}
	}
	return false
}

func parseProductObject(node map[string]any, base *url.URL) (domain.Product, bool) {
	name, _ := node["name"].(string)
	name = cleanText(name)
	if name == "" {
		return domain.Product{}, false
	}

	p := domain.Product{Name: name, Currency: "USD"}

	if raw, ok := node["url"].(string); ok {
		p.URL = resolveURL(base, raw)
	}

	if img := imageFromJSON(node["image"]); img != "" && isProductImage(img) {
		p.ImageURL = resolveURL(base, img)
	}

	offers := firstObject(node["offers"])
	if offers != nil {
		price := offers["price"]
		if price == nil {
			price = offers["lowPrice"]
		}
		if value := floatFromJSON(price); value != nil {
			p.Price = value
			p.OriginalPrice = priceDisplay(price)
			if cur, ok := offers["priceCurrency"].(string); ok && cur != "" {
				p.Currency = cur
			}
		}
		if avail, ok := offers["availability"].(string); ok {
			switch {
			case strings.Contains(avail, "OutOfStock"):
				p.Stock = domain.StockOut
			case strings.Contains(avail, "InStock"):
				p.Stock = domain.StockIn
			}
		}
	}

	if rating, ok := node["aggregateRating"].(map[string]any); ok {
		p.Rating = floatFromJSON(rating["ratingValue"])
		count := rating["reviewCount"]
		if count == nil {
			count = rating["ratingCount"]
		}
		if value := floatFromJSON(count); value != nil {
			n := int(*value)
			p.Reviews = &n
		}
	}

	switch brand := node["brand"].(type) {
	case string:
		p.Brand = cleanText(brand)
	case map[string]any:
		if bn, ok := brand["name"].(string); ok {
			p.Brand = cleanText(bn)
		}
	}

	if desc, ok := node["description"].(string); ok {
		p.Description = cleanText(desc)
	}

	return p, true
}

// firstObject unwraps a value that may be an object or an array of
// objects, a common ambiguity in real-world offers blocks.
func firstObject(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				return obj
			}
		}
	}
	return nil
}

// imageFromJSON handles the string / object / list forms the image
// property takes across sites.
func imageFromJSON(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case map[string]any:
		for _, key := range []string{"url", "src", "contentUrl", "@id"} {
			if s, ok := v[key].(string); ok && s != "" {
				return s
			}
		}
	case []any:
		for _, item := range v {
			if s := imageFromJSON(item); s != "" {
				return s
			}
		}
	}
	return ""
}

func floatFromJSON(value any) *float64 {
	switch v := value.(type) {
	case float64:
		return &v
	case string:
		price, _ := ParsePrice(v)
		return price
	}
	return nil
}

func priceDisplay(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
	}
	return ""
}
