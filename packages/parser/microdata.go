package parser

import (
	"net/url"
	"strings"

	"extractionworker/packages/domain"

	"github.com/PuerkitoBio/goquery"
)

// microdataStrategy decodes itemscope/itemprop annotations on elements
// marked with a schema.org Product itemtype.
type microdataStrategy struct{}

func (microdataStrategy) Name() string { return "microdata" }

func (s microdataStrategy) Attempt(doc *goquery.Document, base *url.URL) []domain.Product {
	var products []domain.Product

	doc.Find(`[itemtype*="Product"]`).Each(func(_ int, scope *goquery.Selection) {
		p := domain.Product{Currency: "USD"}

		if name := scope.Find(`[itemprop="name"]`).First(); name.Length() > 0 {
			p.Name = attrOrText(name, "content")
		}
		if p.Name == "" {
			return
		}

		if link := scope.Find(`[itemprop="url"]`).First(); link.Length() > 0 {
			p.URL = resolveURL(base, attrOrText(link, "href", "content"))
		}

		if img := scope.Find(`[itemprop="image"]`).First(); img.Length() > 0 {
			raw := imageURL(img)
			if raw == "" {
				raw = attrOrText(img, "content", "href")
			}
			if raw != "" && isProductImage(raw) {
				p.ImageURL = resolveURL(base, raw)
			}
		}

		if price := scope.Find(`[itemprop="price"]`).First(); price.Length() > 0 {
			text := attrOrText(price, "content")
			if value, currency := ParsePrice(text); value != nil {
				p.Price = value
				p.Currency = currency
				p.OriginalPrice = text
			}
		}

		if rating := scope.Find(`[itemprop="ratingValue"]`).First(); rating.Length() > 0 {
			p.Rating = ParseRating(attrOrText(rating, "content"))
		}
		if reviews := scope.Find(`[itemprop="reviewCount"]`).First(); reviews.Length() > 0 {
			p.Reviews = ParseReviewCount(attrOrText(reviews, "content"))
		}
		if brand := scope.Find(`[itemprop="brand"]`).First(); brand.Length() > 0 {
			p.Brand = attrOrText(brand, "content")
		}

		if avail := scope.Find(`[itemprop="availability"]`).First(); avail.Length() > 0 {
			text := attrOrText(avail, "href", "content")
			switch {
			case strings.Contains(text, "OutOfStock"):
				p.Stock = domain.StockOut
			case strings.Contains(text, "InStock"):
				p.Stock = domain.StockIn
			}
		}

		products = append(products, p)
	})

	return products
}
