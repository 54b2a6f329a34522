// Package domain
package domain

import "time"

type Status string

const (
	Pending    Status = "pending"
	Processing Status = "processing"
	Completed  Status = "completed"
	Failed     Status = "failed"
)

// StockState is the tri-state availability of a product. Pages that carry
// no availability signal map to StockUnknown, not StockOut.
type StockState int

const (
	StockUnknown StockState = iota
	StockIn
	StockOut
)

// WorkItem is one row of product_page_urls: a (product type, source URL)
// pair waiting to be fetched and extracted.
type WorkItem struct {
	ID            int64
	ProductTypeID int64
	SourceURL     string
	RetryCount    int
}

// FetchedPage pairs a WorkItem's source URL with the HTML the fetch
// service returned for it, or the error that stands in for it. It lives
// for one batch cycle only.
type FetchedPage struct {
	SourceURL string
	HTML      string
	Err       error
}

// Product is one decoded product candidate. Name and URL are required
// for a candidate to survive validation; everything else is best effort.
type Product struct {
	Name          string
	URL           string
	ImageURL      string
	OriginalPrice string
	Price         *float64
	Currency      string
	Rating        *float64
	Reviews       *int
	Brand         string
	Description   string
	Stock         StockState

	// Provenance.
	PlatformURL string
	Strategy    string
}

// ExtractionResult is the engine's per-page outcome.
type ExtractionResult struct {
	Products []Product
	Strategy string
	Success  bool
	Error    string
}

// ProductRow is the persisted form of a Product: the r_product_data row.
// CategoryID and SearchedProductID are reserved columns this system
// never populates.
type ProductRow struct {
	PlatformURL       string
	ProductName       string
	ProductURL        string
	ProductImageURL   *string
	OriginalPrice     *string
	CurrentPrice      *float64
	Description       *string
	Rating            *float64
	Reviews           *int
	InStock           string // "Yes" / "No"
	Brand             *string
	CategoryID        *int64
	SearchedProductID *int64
	ProductTypeID     int64
}

// Row converts an extracted product into its stored form, inheriting the
// product type from the originating work item. Unknown stock persists as
// "Yes": the column has no third state and pages that say nothing are
// overwhelmingly live listings.
func (p Product) Row(productTypeID int64) ProductRow {
	row := ProductRow{
		PlatformURL:   p.PlatformURL,
		ProductName:   p.Name,
		ProductURL:    p.URL,
		CurrentPrice:  p.Price,
		Rating:        p.Rating,
		Reviews:       p.Reviews,
		InStock:       "Yes",
		ProductTypeID: productTypeID,
	}
	if p.Stock == StockOut {
		row.InStock = "No"
	}
	if p.ImageURL != "" {
		row.ProductImageURL = &p.ImageURL
	}
	if p.OriginalPrice != "" {
		row.OriginalPrice = &p.OriginalPrice
	}
	if p.Brand != "" {
		row.Brand = &p.Brand
	}
	if p.Description != "" {
		row.Description = &p.Description
	}
	return row
}

// Outcome summarizes the terminal update for one work item.
type Outcome struct {
	ItemID        int64
	Success       bool
	ProductsFound int
	ProductsSaved int
	ErrorMessage  string
	ProcessedAt   time.Time
}
