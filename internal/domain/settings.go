package domain

import "fmt"

// MatchSettings holds the tunable parameters of the product-matching engine.
// A snapshot is taken once per matching operation; scoring functions receive
// it as an explicit argument and never read shared state.
type MatchSettings struct {
	ProductMatchingEnabled bool `json:"productMatchingEnabled"`
	StrictMatching         bool `json:"strictMatching"`
	ConfidenceThreshold    int  `json:"confidenceThreshold"`

	UsePriceMatching  bool `json:"usePriceMatching"`
	UseWeightMatching bool `json:"useWeightMatching"`
	UseNameMatching   bool `json:"useNameMatching"`
	PriceMatchWeight  int  `json:"priceMatchWeight"`
	WeightMatchWeight int  `json:"weightMatchWeight"`
	NameMatchWeight   int  `json:"nameMatchWeight"`

	UseOpenFoodFactsFallback bool `json:"useOpenFoodFactsFallback"`
	MaxProductCandidates     int  `json:"maxProductCandidates"`
	UseQuantityInSearch      bool `json:"useQuantityInSearch"`
	UseBrandInSearch         bool `json:"useBrandInSearch"`

	EANScore10Plus int `json:"eanScore10Plus"`
	EANScore8Plus  int `json:"eanScore8Plus"`
	EANScore6Plus  int `json:"eanScore6Plus"`
	EANScore4Plus  int `json:"eanScore4Plus"`

	UseBarcodeCache bool `json:"useBarcodeCache"`
}

// DefaultMatchSettings returns the settings used before any user tuning.
func DefaultMatchSettings() MatchSettings {
	return MatchSettings{
		ProductMatchingEnabled:   true,
		StrictMatching:           false,
		ConfidenceThreshold:      50,
		UsePriceMatching:         true,
		UseWeightMatching:        true,
		UseNameMatching:          true,
		PriceMatchWeight:         40,
		WeightMatchWeight:        30,
		NameMatchWeight:          30,
		UseOpenFoodFactsFallback: true,
		MaxProductCandidates:     15,
		UseQuantityInSearch:      true,
		UseBrandInSearch:         false,
		EANScore10Plus:           90,
		EANScore8Plus:            70,
		EANScore6Plus:            50,
		EANScore4Plus:            30,
		UseBarcodeCache:          true,
	}
}

// Validate rejects out-of-range values. Values are never clamped silently.
func (s MatchSettings) Validate() error {
	checkRange := func(name string, value, lo, hi int) error {
		if value < lo || value > hi {
			return fmt.Errorf("%w: %s must be between %d and %d, got %d",
				ErrInvalidSettings, name, lo, hi, value)
		}
		return nil
	}

	if err := checkRange("confidenceThreshold", s.ConfidenceThreshold, 0, 100); err != nil {
		return err
	}
	if err := checkRange("maxProductCandidates", s.MaxProductCandidates, 5, 50); err != nil {
		return err
	}
	for _, w := range []struct {
		name  string
		value int
	}{
		{"priceMatchWeight", s.PriceMatchWeight},
		{"weightMatchWeight", s.WeightMatchWeight},
		{"nameMatchWeight", s.NameMatchWeight},
		{"eanScore10Plus", s.EANScore10Plus},
		{"eanScore8Plus", s.EANScore8Plus},
		{"eanScore6Plus", s.EANScore6Plus},
		{"eanScore4Plus", s.EANScore4Plus},
	} {
		if err := checkRange(w.name, w.value, 0, 100); err != nil {
			return err
		}
	}

	// The EAN score bands form a step function over matching-digit counts;
	// more matching digits must never score lower than fewer.
	if s.EANScore10Plus < s.EANScore8Plus ||
		s.EANScore8Plus < s.EANScore6Plus ||
		s.EANScore6Plus < s.EANScore4Plus {
		return fmt.Errorf("%w: EAN score bands must be monotonically decreasing "+
			"(10+ >= 8+ >= 6+ >= 4+)", ErrInvalidSettings)
	}

	return nil
}

// SettingsPatch is a partial settings update; nil fields are left unchanged.
type SettingsPatch struct {
	ProductMatchingEnabled   *bool `json:"productMatchingEnabled,omitempty"`
	StrictMatching           *bool `json:"strictMatching,omitempty"`
	ConfidenceThreshold      *int  `json:"confidenceThreshold,omitempty"`
	UsePriceMatching         *bool `json:"usePriceMatching,omitempty"`
	UseWeightMatching        *bool `json:"useWeightMatching,omitempty"`
	UseNameMatching          *bool `json:"useNameMatching,omitempty"`
	PriceMatchWeight         *int  `json:"priceMatchWeight,omitempty"`
	WeightMatchWeight        *int  `json:"weightMatchWeight,omitempty"`
	NameMatchWeight          *int  `json:"nameMatchWeight,omitempty"`
	UseOpenFoodFactsFallback *bool `json:"useOpenFoodFactsFallback,omitempty"`
	MaxProductCandidates     *int  `json:"maxProductCandidates,omitempty"`
	UseQuantityInSearch      *bool `json:"useQuantityInSearch,omitempty"`
	UseBrandInSearch         *bool `json:"useBrandInSearch,omitempty"`
	EANScore10Plus           *int  `json:"eanScore10Plus,omitempty"`
	EANScore8Plus            *int  `json:"eanScore8Plus,omitempty"`
	EANScore6Plus            *int  `json:"eanScore6Plus,omitempty"`
	EANScore4Plus            *int  `json:"eanScore4Plus,omitempty"`
	UseBarcodeCache          *bool `json:"useBarcodeCache,omitempty"`
}

// Apply returns a copy of base with the non-nil patch fields applied.
func (p SettingsPatch) Apply(base MatchSettings) MatchSettings {
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}

	out := base
	setBool(&out.ProductMatchingEnabled, p.ProductMatchingEnabled)
	setBool(&out.StrictMatching, p.StrictMatching)
	setInt(&out.ConfidenceThreshold, p.ConfidenceThreshold)
	setBool(&out.UsePriceMatching, p.UsePriceMatching)
	setBool(&out.UseWeightMatching, p.UseWeightMatching)
	setBool(&out.UseNameMatching, p.UseNameMatching)
	setInt(&out.PriceMatchWeight, p.PriceMatchWeight)
	setInt(&out.WeightMatchWeight, p.WeightMatchWeight)
	setInt(&out.NameMatchWeight, p.NameMatchWeight)
	setBool(&out.UseOpenFoodFactsFallback, p.UseOpenFoodFactsFallback)
	setInt(&out.MaxProductCandidates, p.MaxProductCandidates)
	setBool(&out.UseQuantityInSearch, p.UseQuantityInSearch)
	setBool(&out.UseBrandInSearch, p.UseBrandInSearch)
	setInt(&out.EANScore10Plus, p.EANScore10Plus)
	setInt(&out.EANScore8Plus, p.EANScore8Plus)
	setInt(&out.EANScore6Plus, p.EANScore6Plus)
	setInt(&out.EANScore4Plus, p.EANScore4Plus)
	setBool(&out.UseBarcodeCache, p.UseBarcodeCache)
	return out
}
