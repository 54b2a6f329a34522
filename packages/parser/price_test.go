package parser

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantValue    float64
		wantNil      bool
		wantCurrency string
	}{
		{name: "dollar with thousands separator", text: "$1,299.00", wantValue: 1299.00, wantCurrency: "USD"},
		{name: "rupee symbol", text: "₹ 2,499", wantValue: 2499, wantCurrency: "INR"},
		{name: "rupee abbreviation", text: "Rs. 999.50", wantValue: 999.50, wantCurrency: "INR"},
		{name: "euro", text: "€49.99", wantValue: 49.99, wantCurrency: "EUR"},
		{name: "pound", text: "£12.00", wantValue: 12.00, wantCurrency: "GBP"},
		{name: "bare number defaults to USD", text: "19.99", wantValue: 19.99, wantCurrency: "USD"},
		{name: "no digits", text: "Contact us for pricing", wantNil: true, wantCurrency: "USD"},
		{name: "empty", text: "", wantNil: true, wantCurrency: "USD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, currency := ParsePrice(tt.text)
			if tt.wantNil {
				if value != nil {
					t.Fatalf("ParsePrice(%q) = %v, want nil", tt.text, *value)
				}
			} else {
				if value == nil {
					t.Fatalf("ParsePrice(%q) = nil, want %v", tt.text, tt.wantValue)
				}
				if *value != tt.wantValue {
					t.Errorf("ParsePrice(%q) = %v, want %v", tt.text, *value, tt.wantValue)
				}
			}
			if currency != tt.wantCurrency {
				t.Errorf("ParsePrice(%q) currency = %q, want %q", tt.text, currency, tt.wantCurrency)
			}
		})
	}
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		text    string
		want    float64
		wantNil bool
	}{
		{text: "4.3 out of 5 stars", want: 4.3},
		{text: "5", want: 5},
		{text: "Rated 3.5/5", want: 3.5},
		{text: "no rating yet", wantNil: true},
	}

	for _, tt := range tests {
		got := ParseRating(tt.text)
		if tt.wantNil {
			if got != nil {
				t.Errorf("ParseRating(%q) = %v, want nil", tt.text, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("ParseRating(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestParseReviewCount(t *testing.T) {
	tests := []struct {
		text    string
		want    int
		wantNil bool
	}{
		{text: "1,482 ratings", want: 1482},
		{text: "(67)", want: 67},
		{text: "be the first to review", wantNil: true},
	}

	for _, tt := range tests {
		got := ParseReviewCount(tt.text)
		if tt.wantNil {
			if got != nil {
				t.Errorf("ParseReviewCount(%q) = %v, want nil", tt.text, *got)
			}
			continue
		}
		if got == nil || *got != tt.want {
			t.Errorf("ParseReviewCount(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
