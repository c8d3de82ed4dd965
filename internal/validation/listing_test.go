package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestIsValidNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{
			name:   "ten digits",
			number: "0912345678",
			valid:  true,
		},
		{
			name:   "eleven digits",
			number: "01234567890",
			valid:  true,
		},
		{
			name:   "no leading zero",
			number: "9123456789",
			valid:  false,
		},
		{
			name:   "too short",
			number: "091234",
			valid:  false,
		},
		{
			name:   "contains letters",
			number: "09123a5678",
			valid:  false,
		},
		{
			name:   "empty string",
			number: "",
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidNumber(tt.number)
			if got != tt.valid {
				t.Fatalf("IsValidNumber(%q) = %v, want %v", tt.number, got, tt.valid)
			}
		})
	}
}

func TestNormalizeNumber(t *testing.T) {
	if got := NormalizeNumber("0912.345 67-8"); got != "0912345678" {
		t.Fatalf("NormalizeNumber = %q", got)
	}
}

func validFields() ListingFields {
	return ListingFields{
		Number:        "0999999999",
		Network:       "Viettel",
		Category:      "Tứ quý",
		StartingPrice: decimal.NewFromInt(750000),
		BeautyScore:   5,
	}
}

func TestValidateListing(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	tests := []struct {
		name   string
		mutate func(f *ListingFields)
		valid  bool
	}{
		{
			name:   "valid draft",
			mutate: func(f *ListingFields) {},
			valid:  true,
		},
		{
			name: "valid with schedule and buy now",
			mutate: func(f *ListingFields) {
				f.StartTime, f.EndTime = &start, &end
				f.BuyNowPrice = decimal.NewNullDecimal(decimal.NewFromInt(2000000))
			},
			valid: true,
		},
		{
			name:   "bad number",
			mutate: func(f *ListingFields) { f.Number = "12" },
		},
		{
			name:   "missing network",
			mutate: func(f *ListingFields) { f.Network = " " },
		},
		{
			name:   "zero starting price",
			mutate: func(f *ListingFields) { f.StartingPrice = decimal.Zero },
		},
		{
			name:   "fractional cents",
			mutate: func(f *ListingFields) { f.StartingPrice = decimal.RequireFromString("10.005") },
		},
		{
			name:   "starting price beyond column",
			mutate: func(f *ListingFields) { f.StartingPrice = decimal.RequireFromString("1e17") },
		},
		{
			name: "zero buy now with huge exponent",
			mutate: func(f *ListingFields) {
				f.BuyNowPrice = decimal.NewNullDecimal(decimal.RequireFromString("0e300000000"))
			},
		},
		{
			name: "huge buy now exponent",
			mutate: func(f *ListingFields) {
				f.BuyNowPrice = decimal.NewNullDecimal(decimal.RequireFromString("1e300000000"))
			},
		},
		{
			name: "buy now below start",
			mutate: func(f *ListingFields) {
				f.BuyNowPrice = decimal.NewNullDecimal(decimal.NewFromInt(100))
			},
		},
		{
			name:   "beauty score out of range",
			mutate: func(f *ListingFields) { f.BeautyScore = 6 },
		},
		{
			name:   "only start time",
			mutate: func(f *ListingFields) { f.StartTime = &start },
		},
		{
			name:   "end before start",
			mutate: func(f *ListingFields) { f.StartTime, f.EndTime = &end, &start },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.mutate(&f)
			err := ValidateListing(f)
			if tt.valid && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidField) {
				t.Fatalf("expected ErrInvalidField, got %v", err)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		valid  bool
	}{
		{name: "cents", amount: "100.50", valid: true},
		{name: "trailing zeros", amount: "100.5000", valid: true},
		{name: "negative delta", amount: "-250.25", valid: true},
		{name: "column maximum", amount: "9999999999999999.99", valid: true},
		{name: "sub-cent", amount: "100.501"},
		{name: "tiny exponent", amount: "1e-300000000"},
		{name: "above column", amount: "1e16"},
		{name: "large", amount: "1e17"},
		{name: "huge exponent", amount: "1e300000000"},
		{name: "zero with huge exponent", amount: "0e300000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan error, 1)
			go func() { done <- ValidateAmount(decimal.RequireFromString(tt.amount)) }()

			var err error
			select {
			case err = <-done:
			case <-time.After(2 * time.Second):
				t.Fatalf("ValidateAmount(%s) did not return", tt.amount)
			}

			if tt.valid && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidField) {
				t.Fatalf("expected ErrInvalidField, got %v", err)
			}
		})
	}
}
