package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe = regexp.MustCompile(`[\d,]+\.?\d*`)
	ratingRe = regexp.MustCompile(`(\d+\.?\d*)`)
	digitsRe = regexp.MustCompile(`\d+`)
)

// ParsePrice extracts a numeric price and a currency code from display
// text like "$1,299.00" or "₹ 2,499". Unparsable text yields a nil price;
// the caller keeps the product and preserves the original text.
func ParsePrice(text string) (*float64, string) {
	currency := "USD"
	if text == "" {
		return nil, currency
	}

	switch {
	case strings.Contains(text, "₹") || strings.Contains(text, "INR") || strings.Contains(text, "Rs"):
		currency = "INR"
	case strings.Contains(text, "€") || strings.Contains(text, "EUR"):
		currency = "EUR"
	case strings.Contains(text, "£") || strings.Contains(text, "GBP"):
		currency = "GBP"
	}

	match := numberRe.FindString(text)
	if match == "" {
		return nil, currency
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match, ",", ""), 64)
	if err != nil {
		return nil, currency
	}
	return &value, currency
}

// ParseRating pulls the first decimal out of rating text such as
// "4.3 out of 5 stars".
func ParseRating(text string) *float64 {
	match := ratingRe.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	return &value
}

// ParseReviewCount pulls an integer count out of text like "1,482 ratings".
func ParseReviewCount(text string) *int {
	match := digitsRe.FindString(strings.ReplaceAll(text, ",", ""))
	if match == "" {
		return nil
	}
	count, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &count
}

func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
