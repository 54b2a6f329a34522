package store

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncateError(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"short passes through", "fetch https://a.test: timeout"},
		{"long ascii", strings.Repeat("x", 2000)},
		{"multibyte at the cut", strings.Repeat("a", maxErrorMessageLen-4) + "₹₹₹₹₹"},
		{"all multibyte", strings.Repeat("é", 800)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateError(tt.input)
			if len(got) > maxErrorMessageLen {
				t.Errorf("len = %d, exceeds column limit %d", len(got), maxErrorMessageLen)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncation produced invalid UTF-8: %q", got[len(got)-10:])
			}
			if len(tt.input) <= maxErrorMessageLen && got != tt.input {
				t.Errorf("short input changed: %q", got)
			}
			if len(tt.input) > maxErrorMessageLen && !strings.HasSuffix(got, "...") {
				t.Errorf("truncated value missing ellipsis: %q", got[len(got)-10:])
			}
		})
	}
}
