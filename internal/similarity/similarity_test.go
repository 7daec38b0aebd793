package similarity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestStringSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical strings", a: "NEFT Payment", b: "NEFT Payment", want: 100},
		{name: "identical after normalization", a: "  Grocery-Store  ", b: "grocery store", want: 100},
		{name: "containment counts as full match", a: "Grocery Store Purchase", b: "Grocery Store Purchase Ltd", want: 100},
		{name: "containment is symmetric", a: "Grocery Store Purchase Ltd", b: "Grocery Store Purchase", want: 100},
		{name: "edit distance percentage", a: "kitten", b: "sitting", want: 57.14},
		{name: "disjoint strings", a: "abc", b: "xyz", want: 0},
		{name: "one empty string", a: "", b: "abc", want: 0},
		{name: "both empty", a: "", b: "", want: 100},
		{name: "whitespace only is empty", a: "   ", b: "", want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, StringSimilarity(tt.a, tt.b), 0.001)
		})
	}
}

func TestStringSimilaritySymmetry(t *testing.T) {
	pairs := [][2]string{
		{"Payment to XYZ", "Payment XYZ Corp"},
		{"ATM withdrawal", "atm-withdrawal branch 7"},
		{"Salary credit April", "Rent payment April"},
		{"", "something"},
	}
	for _, p := range pairs {
		assert.Equal(t, StringSimilarity(p[0], p[1]), StringSimilarity(p[1], p[0]),
			"similarity should be symmetric for %q / %q", p[0], p[1])
	}
}

func TestStringSimilaritySelfIdentity(t *testing.T) {
	for _, s := range []string{"", "a", "NEFT-000123456789 SALARY", "Grocery Store Purchase"} {
		assert.Equal(t, 100.0, StringSimilarity(s, s))
	}
}

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Grocery Store  ", "grocery store"},
		{"UPI/987654321012/Payment", "upi 987654321012 payment"},
		{"A--B__C", "a b c"},
		{"***", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeText(tt.in))
	}
}

func TestSameDay(t *testing.T) {
	morning := time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 4, 1, 23, 30, 0, 0, time.UTC)
	nextDay := time.Date(2024, 4, 2, 0, 30, 0, 0, time.UTC)

	assert.True(t, SameDay(morning, evening))
	assert.False(t, SameDay(evening, nextDay))
}

func TestDateProximity(t *testing.T) {
	base := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	tolerance := 24 * time.Hour

	assert.True(t, DateProximity(base, base, tolerance))
	assert.True(t, DateProximity(base, base.Add(24*time.Hour), tolerance))
	assert.True(t, DateProximity(base.Add(24*time.Hour), base, tolerance))
	assert.False(t, DateProximity(base, base.Add(25*time.Hour), tolerance))
	assert.False(t, DateProximity(base, base.AddDate(0, 0, 2), tolerance))
}

func TestDateCloseness(t *testing.T) {
	tolerance := 24 * time.Hour
	base := time.Date(2024, 4, 1, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, 1.0, DateCloseness(base, base.Add(-10*time.Hour), tolerance), "same day scores full")
	assert.InDelta(t, 0.5, DateCloseness(base, base.Add(12*time.Hour), tolerance), 0.001)
	assert.Equal(t, 0.0, DateCloseness(base, base.Add(25*time.Hour), tolerance))
}

func TestAmountProximity(t *testing.T) {
	tolerance := decimal.NewFromFloat(0.01)

	tests := []struct {
		name string
		a    string
		b    string
		want bool
	}{
		{name: "equal amounts", a: "5000.00", b: "5000.00", want: true},
		{name: "within one percent", a: "5000.00", b: "5050.00", want: true},
		{name: "just over one percent", a: "5000.00", b: "5051.00", want: false},
		{name: "both zero", a: "0", b: "0", want: true},
		{name: "zero versus tiny uses floor denominator", a: "0", b: "0.005", want: true},
		{name: "zero versus large", a: "0", b: "100.00", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := decimal.RequireFromString(tt.a)
			b := decimal.RequireFromString(tt.b)
			assert.Equal(t, tt.want, AmountProximity(a, b, tolerance))
			assert.Equal(t, tt.want, AmountProximity(b, a, tolerance), "proximity should be symmetric")
		})
	}
}

func TestAmountProximitySelfIdentity(t *testing.T) {
	tolerance := decimal.NewFromFloat(0.01)
	for _, s := range []string{"0", "1", "5000.00", "0.01", "999999.99"} {
		x := decimal.RequireFromString(s)
		assert.True(t, AmountProximity(x, x, tolerance))
	}
}
