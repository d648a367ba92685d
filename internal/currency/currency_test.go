package currency

import "testing"

func TestNormalize_TaggedCurrencies(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"taiwan dollar", "NT$1,200", 38.40},
		{"hong kong dollar", "HK$100", 13.00},
		{"yen", "¥10,000", 67.00},
		{"fullwidth yen", "￥3,000", 20.10},
		{"euro", "€50", 54.00},
		{"pound", "£20", 25.00},
		{"plain dollar", "$45.00", 45.00},
		{"usd word", "USD 120", 120.00},
		{"dollar with thousands", "$1,234.56", 1234.56},
		{"embedded in text", "Sold  $89.99  Best offer accepted", 89.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.text)
			if !ok {
				t.Fatalf("Normalize(%q) = not found, want %v", tt.text, tt.want)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestNormalize_SpecificSymbolWinsOverGenericDollar(t *testing.T) {
	// NT$ must not be swallowed by the generic $ pattern as "$1,200".
	got, ok := Normalize("NT$1,200 shipping included")
	if !ok || got != 38.40 {
		t.Fatalf("Normalize(NT$1,200) = %v, %v; want 38.40, true", got, ok)
	}
	got, ok = Normalize("HK$250")
	if !ok || got != 32.50 {
		t.Fatalf("Normalize(HK$250) = %v, %v; want 32.50, true", got, ok)
	}
}

func TestNormalize_SanityBounds(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"below floor", "$0.50"},
		{"above ceiling", "$999999"},
		{"zero", "$0"},
		{"no price at all", "no price here"},
		{"empty", ""},
		{"symbols only", "$$$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, ok := Normalize(tt.text); ok {
				t.Errorf("Normalize(%q) = %v, want not found", tt.text, got)
			}
		})
	}
}

func TestNormalize_ContextualFallbacks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"sold for", "item sold for 350 last week", 350.00},
		{"price label", "Price: 42.50", 42.50},
		{"bare decimal", "129.99", 129.99},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.text)
			if !ok || got != tt.want {
				t.Errorf("Normalize(%q) = %v, %v; want %v, true", tt.text, got, ok, tt.want)
			}
		})
	}
}

func TestNormalize_BareNumberOutOfBounds(t *testing.T) {
	if got, ok := Normalize("0.25"); ok {
		t.Errorf("Normalize(0.25) = %v, want not found", got)
	}
	if got, ok := Normalize("sold for 900000"); ok {
		t.Errorf("Normalize(sold for 900000) = %v, want not found", got)
	}
}

func TestContainsPriceHint(t *testing.T) {
	for _, text := range []string{"$45", "¥100", "Sold Jan 5", "Price hidden", "USD"} {
		if !ContainsPriceHint(text) {
			t.Errorf("ContainsPriceHint(%q) = false, want true", text)
		}
	}
	for _, text := range []string{"Vintage kimono", "", "free shipping"} {
		if ContainsPriceHint(text) {
			t.Errorf("ContainsPriceHint(%q) = true, want false", text)
		}
	}
}
