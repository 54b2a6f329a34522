package parser

import (
	"net/url"
	"strings"

	"extractionworker/packages/domain"

	"github.com/PuerkitoBio/goquery"
)

// selectorStrategy reads product cards out of listing markup using a
// library of class/id selectors collected from real storefronts.
type selectorStrategy struct{}

func (selectorStrategy) Name() string { return "selectors" }

// containerSelectors locate the element holding the product list. The
// first selector with any match wins; the document body is the fallback.
var containerSelectors = []string{
	`[data-component-type="s-search-result"]`,
	".s-result-list",
	".search-result-gridview-items",
	"#products-grid",
	".products",
	".product-list",
	".results",
	`[class*="product-grid"]`,
	`[class*="search-results"]`,
	`[data-test*="product"]`,
	".catalog-grid",
	`[role="list"]`,
	".product-base",
	".product-tuple",
	".productCard",
	`[class*="productBase"]`,
	`[class*="product-tuple"]`,
	`[class*="jm-product"]`,
	`[class*="product-item"]`,
	`[id*="product"]`,
}

var cardSelectors = []string{
	`[data-component-type="s-search-result"]`,
	".product-card",
	".product-item",
	".product-base",
	".product-tuple",
	`[class*="productBase"]`,
	`[class*="product-tuple"]`,
	`[class*="product"]`,
	"[data-product-id]",
	"[data-sku]",
	"article",
	`[itemtype*="Product"]`,
	`[class*="item"]`,
	`[class*="listing"]`,
	`li[class*="product"]`,
	`div[class*="product"]`,
}

var titleSelectors = []string{
	"h2 a",
	"h3 a",
	`[class*="title"] a`,
	`[class*="name"] a`,
	"a[title]",
	`[itemprop="name"]`,
	"[data-title]",
	".product-title",
	".item-title",
}

var priceSelectors = []string{
	`[class*="price"]`,
	`[itemprop="price"]`,
	"[data-price]",
	`span[class*="cost"]`,
	".price-box",
	`[class*="amount"]`,
}

var linkSelectors = []string{
	`a[href*="/product"]`,
	`a[href*="/item"]`,
	`a[href*="/p/"]`,
	`a[href*="/dp/"]`,
	"a.product-link",
	`[itemprop="url"]`,
	`a[href*="productId="]`,
	`a[href*="pid="]`,
}

var ratingSelectors = []string{
	`[class*="rating"]`,
	`[itemprop="ratingValue"]`,
	"[data-rating]",
	".stars",
	`[aria-label*="star"]`,
}

var reviewSelectors = []string{
	`[class*="review"]`,
	`[itemprop="reviewCount"]`,
	"[data-review-count]",
	".rating-count",
}

func (s selectorStrategy) Attempt(doc *goquery.Document, base *url.URL) []domain.Product {
	containers := findContainers(doc)

	var products []domain.Product
	for _, container := range containers {
		for _, card := range findCards(container) {
			if p, ok := cardProduct(card, base); ok {
				products = append(products, p)
			}
		}
		// container candidates are alternatives for the same listing
		if len(products) > 0 {
			break
		}
	}
	return products
}

func findContainers(doc *goquery.Document) []*goquery.Selection {
	for _, selector := range containerSelectors {
		found := doc.Find(selector)
		if found.Length() > 0 {
			containers := make([]*goquery.Selection, 0, found.Length())
			found.Each(func(_ int, sel *goquery.Selection) {
				containers = append(containers, sel)
			})
			return containers
		}
	}
	if body := doc.Find("body").First(); body.Length() > 0 {
		return []*goquery.Selection{body}
	}
	return []*goquery.Selection{doc.Selection}
}

func findCards(container *goquery.Selection) []*goquery.Selection {
	for _, selector := range cardSelectors {
		found := container.Find(selector)
		if found.Length() > 0 {
			cards := make([]*goquery.Selection, 0, found.Length())
			found.Each(func(_ int, sel *goquery.Selection) {
				cards = append(cards, sel)
			})
			return cards
		}
	}

	// last resort: any element wrapping both an image and a real link
	var cards []*goquery.Selection
	container.Find("div, li, article").Each(func(_ int, sel *goquery.Selection) {
		if sel.Find("img").Length() == 0 {
			return
		}
		href, ok := sel.Find("a[href]").First().Attr("href")
		if !ok || href == "" || href == "#" || strings.HasPrefix(href, "javascript:") {
			return
		}
		cards = append(cards, sel)
	})
	return cards
}

func cardProduct(card *goquery.Selection, base *url.URL) (domain.Product, bool) {
	p := domain.Product{Currency: "USD"}

	for _, selector := range titleSelectors {
		elem := card.Find(selector).First()
		if elem.Length() == 0 {
			continue
		}
		if title, ok := elem.Attr("title"); ok && cleanText(title) != "" {
			p.Name = cleanText(title)
		} else {
			p.Name = cleanText(elem.Text())
		}
		if p.Name != "" {
			break
		}
	}

	for _, selector := range linkSelectors {
		elem := card.Find(selector).First()
		if elem.Length() == 0 {
			continue
		}
		if href := attrOrText(elem, "href", "content"); href != "" {
			p.URL = resolveURL(base, href)
			break
		}
	}
	if p.URL == "" {
		if href, ok := card.Find("a[href]").First().Attr("href"); ok && href != "" {
			p.URL = resolveURL(base, href)
		}
	}

	if raw := imageURL(card.Find("img").First()); raw != "" && isProductImage(raw) {
		p.ImageURL = resolveURL(base, raw)
	}

	for _, selector := range priceSelectors {
		elem := card.Find(selector).First()
		if elem.Length() == 0 {
			continue
		}
		text := attrOrText(elem, "content")
		if value, currency := ParsePrice(text); value != nil {
			p.Price = value
			p.Currency = currency
			p.OriginalPrice = cleanText(text)
			break
		}
	}

	for _, selector := range ratingSelectors {
		elem := card.Find(selector).First()
		if elem.Length() == 0 {
			continue
		}
		if rating := ParseRating(attrOrText(elem, "content", "aria-label")); rating != nil {
			p.Rating = rating
			break
		}
	}

	for _, selector := range reviewSelectors {
		elem := card.Find(selector).First()
		if elem.Length() == 0 {
			continue
		}
		if count := ParseReviewCount(attrOrText(elem, "content")); count != nil {
			p.Reviews = count
			break
		}
	}

	if brand := card.Find(`[itemprop="brand"], [class*="brand"], [data-brand]`).First(); brand.Length() > 0 {
		p.Brand = attrOrText(brand, "content")
	}

	if stock := card.Find(`[itemprop="availability"], [class*="stock"], [data-stock]`).First(); stock.Length() > 0 {
		text := strings.ToLower(attrOrText(stock, "content", "href"))
		if strings.Contains(text, "instock") || strings.Contains(text, "available") {
			p.Stock = domain.StockIn
		} else {
			p.Stock = domain.StockOut
		}
	}

	return p, p.Name != "" && p.URL != ""
}
