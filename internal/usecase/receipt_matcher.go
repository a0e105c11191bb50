package usecase

import (
	"context"
	"log"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jumboapi/backend/internal/domain"
)

// Receipt names are printed abbreviated and uppercase ("JUM. GESN. CHAMP
// 250G"). These expansions turn them into searchable catalog terms.
var receiptAbbreviations = []struct {
	pattern *regexp.Regexp
	replace string
}{
	{regexp.MustCompile(`(?i)\bJUM\.`), "jumbo "},
	{regexp.MustCompile(`(?i)\bGESN\.?(\s|$)`), "gesneden$1"},
	{regexp.MustCompile(`(?i)\bGEM\.?(\s|$)`), "gemengd$1"},
	{regexp.MustCompile(`(?i)\bRASP\b`), "geraspte"},
	{regexp.MustCompile(`(?i)\bCHAMP\b`), "champignons"},
	{regexp.MustCompile(`(?i)\bA\.ANDERS\b`), "aardappel anders"},
	{regexp.MustCompile(`(?i)\bCC\b`), "con carne"},
	{regexp.MustCompile(`(?i)\bSPAGH\.?\b`), "spaghetti"},
	{regexp.MustCompile(`(?i)\bMAC\.?\b`), "macaroni"},
	{regexp.MustCompile(`(?i)\bGEHAKTBAL\.?\b`), "gehaktballen"},
	{regexp.MustCompile(`(?i)\bZILVERVLIESR\.?\b`), "zilvervliesrijst"},
	{regexp.MustCompile(`(?i)\bWITTER\.?\b`), "witte rijst"},
	{regexp.MustCompile(`(?i)\bAARDB\.?\b`), "aardbeien"},
	{regexp.MustCompile(`(?i)\bSINAASAPP\.?\b`), "sinaasappel"},
	{regexp.MustCompile(`(?i)\bTOMAT\.?\b`), "tomaten"},
	{regexp.MustCompile(`(?i)\bKIPFIL\.?\b`), "kipfilet"},
	{regexp.MustCompile(`(?i)\bMH\b`), ""},
	{regexp.MustCompile(`(?i)\b(6|4|12)PK\b`), ""},
}

var (
	sizeRegex          = regexp.MustCompile(`(?i)(\d+[,.]\d+|\d+)\s*(KG|GR|G|ML|CL|L)\b`)
	letterDigitRegex   = regexp.MustCompile(`([a-zA-Z])(\d)`)
	decimalSizeRegex   = regexp.MustCompile(`(?i)\b\d+[,.]\d+\s*(L|KG|G|ML)\b`)
	wholeSizeRegex     = regexp.MustCompile(`(?i)\b\d+\s*(G|ML|L|KG|PK|PAK|ST|STK|CL|GR)\b`)
	percentRegex       = regexp.MustCompile(`\b\d+%`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)
	nameWordRegex      = regexp.MustCompile(`[a-záàâäéèêëíìîïóòôöúùûüýñç]+`)
)

// dutchStopWords are filler words that carry no matching signal.
var dutchStopWords = map[string]bool{
	"jumbo": true, "de": true, "het": true, "een": true, "van": true,
	"voor": true, "met": true, "en": true, "of": true, "in": true,
}

// CleanReceiptName expands an abbreviated receipt product name into
// searchable terms and strips trailing size tokens.
func CleanReceiptName(name string) string {
	s := strings.TrimSpace(name)
	for _, abbrev := range receiptAbbreviations {
		s = abbrev.pattern.ReplaceAllString(s, abbrev.replace)
	}
	s = letterDigitRegex.ReplaceAllString(s, "$1 $2")
	s = decimalSizeRegex.ReplaceAllString(s, "")
	s = wholeSizeRegex.ReplaceAllString(s, "")
	s = percentRegex.ReplaceAllString(s, "")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// extractSize finds a weight/volume token in text and normalises it to a
// common base unit: grams for weights, millilitres for volumes. "1,5 l" and
// "1.5L" both come out as 1500.
func extractSize(text string) (float64, bool) {
	m := sizeRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToUpper(m[2]) {
	case "CL":
		return value * 10, true
	case "KG", "L":
		return value * 1000, true
	default: // G, GR, ML
		return value, true
	}
}

// nameWords extracts the meaningful lowercase words of a product name for
// overlap comparison. Short tokens and Dutch stop words are dropped.
func nameWords(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range nameWordRegex.FindAllString(strings.ToLower(text), -1) {
		if len(w) >= 2 && !dutchStopWords[w] {
			words[w] = true
		}
	}
	return words
}

// matchScore computes the confidence that a receipt line and a catalog
// product are the same item, split into the weighted total and the name
// sub-score used for tie-breaking. Receipt prices fluctuate with promotions
// and names are truncated, so no single signal decides alone.
func matchScore(line domain.ReceiptLine, product domain.CatalogProduct, settings domain.MatchSettings) (total, nameScore int) {
	score := 0.0
	fullText := product.Title + " " + product.Subtitle

	targetCents := int(math.Round(line.Price * 100))
	if line.UnitPrice > 0 {
		targetCents = int(math.Round(line.UnitPrice * 100))
	}

	if settings.UsePriceMatching && targetCents > 0 {
		bestDiff := abs(product.Price.Price - targetCents)
		if product.Price.PromoPrice > 0 {
			if d := abs(product.Price.PromoPrice - targetCents); d < bestDiff {
				bestDiff = d
			}
		}
		pctDiff := float64(bestDiff) / float64(targetCents) * 100
		weight := float64(settings.PriceMatchWeight)

		switch {
		case bestDiff == 0:
			score += weight
		case pctDiff <= 5:
			score += weight * 0.8
		case pctDiff <= 10:
			score += weight * 0.625
		case pctDiff <= 20:
			score += weight * 0.375
		case pctDiff <= 30:
			score += weight * 0.25
		case pctDiff <= 50:
			score += weight * 0.125
		}
		// beyond 50% deviation the price signal contributes nothing
	}

	if settings.UseWeightMatching {
		lineSize, lineOK := extractSize(line.Name)
		productSize, productOK := extractSize(fullText)
		weight := float64(settings.WeightMatchWeight)

		switch {
		case lineOK && productOK:
			larger, smaller := lineSize, productSize
			if productSize > lineSize {
				larger, smaller = productSize, lineSize
			}
			ratio := 0.0
			if larger > 0 {
				ratio = smaller / larger
			}
			switch {
			case ratio >= 0.99:
				score += weight
			case ratio >= 0.9:
				score += weight * 0.67
			case ratio >= 0.7:
				score += weight * 0.33
			}
		case !lineOK && !productOK:
			// Neither side declares a size; neutral rather than penalizing
			score += weight * 0.5
		}
		// one-sided size info earns nothing
	}

	if settings.UseNameMatching {
		lineWords := nameWords(line.Name)
		productWords := nameWords(fullText)
		if len(lineWords) > 0 && len(productWords) > 0 {
			overlap := 0
			for w := range lineWords {
				if productWords[w] {
					overlap++
				}
			}
			// Relative to the receipt words: they are what we try to explain
			ratio := float64(overlap) / float64(len(lineWords))
			nameScore = int(math.Round(ratio * float64(settings.NameMatchWeight)))
			score += float64(nameScore)
		}
	}

	total = int(math.Round(score))
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return total, nameScore
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// effectiveThreshold applies strict mode: a floor of 70 regardless of the
// configured threshold.
func effectiveThreshold(settings domain.MatchSettings) int {
	threshold := settings.ConfidenceThreshold
	if settings.StrictMatching && threshold < 70 {
		threshold = 70
	}
	return threshold
}

// MatchLine scores a receipt line against a pool of catalog candidates and
// returns the line enriched with the best match at or above the confidence
// threshold. When matching is disabled or nothing qualifies, the input line
// is returned unchanged.
func MatchLine(line domain.ReceiptLine, candidates []domain.CatalogProduct, settings domain.MatchSettings) domain.ReceiptLine {
	if !settings.ProductMatchingEnabled {
		return line
	}
	if line.Name == "" || line.IsDeposit || len(candidates) == 0 {
		return line
	}

	bestIdx := -1
	bestScore := -1
	bestName := -1
	for i, candidate := range candidates {
		total, name := matchScore(line, candidate, settings)
		// Ties go to the stronger name agreement, then to the earlier candidate
		if total > bestScore || (total == bestScore && name > bestName) {
			bestIdx = i
			bestScore = total
			bestName = name
		}
	}

	if bestIdx < 0 || bestScore < effectiveThreshold(settings) {
		return line
	}
	return enrichLine(line, candidates[bestIdx], bestScore)
}

// enrichLine copies catalog metadata onto a matched receipt line.
func enrichLine(line domain.ReceiptLine, product domain.CatalogProduct, confidence int) domain.ReceiptLine {
	enriched := line
	enriched.SKU = product.SKU
	enriched.FullTitle = product.Title
	enriched.Subtitle = product.Subtitle
	enriched.Brand = product.Brand
	enriched.Image = product.Image
	enriched.Link = product.Link
	price := product.Price
	enriched.CatalogPrice = &price
	enriched.MatchConfidence = confidence
	return enriched
}

// ReceiptService enriches parsed receipts with catalog product details,
// using the match cache to avoid re-searching names it has seen before.
type ReceiptService struct {
	catalog  domain.CatalogClient
	cache    domain.MatchCache
	settings domain.SettingsStore
	debug    bool
}

// NewReceiptService creates a receipt enrichment service.
func NewReceiptService(catalog domain.CatalogClient, cache domain.MatchCache, settings domain.SettingsStore, debug bool) *ReceiptService {
	return &ReceiptService{catalog: catalog, cache: cache, settings: settings, debug: debug}
}

func receiptCacheKey(name string) string {
	return "receipt:" + strings.ToUpper(strings.TrimSpace(name))
}

// EnrichItems resolves every product line of a parsed receipt against the
// catalog. Flow per unknown name: search -> batch fetch candidates -> score
// -> cache the winner; lines below the confidence threshold keep their raw
// form but record the confidence for inspection.
func (s *ReceiptService) EnrichItems(ctx context.Context, items []domain.ReceiptLine) ([]domain.ReceiptLine, error) {
	settings, err := s.settings.Get()
	if err != nil {
		return nil, err
	}
	if !settings.ProductMatchingEnabled || len(items) == 0 {
		return items, nil
	}

	threshold := effectiveThreshold(settings)

	type resolved struct {
		sku        string
		confidence int
	}
	matches := make(map[int]resolved)
	var toSearch []int

	for idx, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" || item.IsDeposit {
			continue
		}
		if entry, err := s.cache.Get(ctx, receiptCacheKey(name)); err == nil {
			matches[idx] = resolved{sku: entry.SKU, confidence: entry.Confidence}
			continue
		}
		toSearch = append(toSearch, idx)
	}

	candidatesPerItem := make(map[int][]domain.CatalogProduct)
	skuSet := make(map[string]bool)
	for _, idx := range toSearch {
		candidates, err := s.searchCandidates(ctx, items[idx].Name, settings)
		if err != nil {
			log.Printf("[MATCH] Search failed for %q: %v", items[idx].Name, err)
			continue
		}
		candidatesPerItem[idx] = candidates
		for _, c := range candidates {
			skuSet[c.SKU] = true
		}
	}
	for _, m := range matches {
		skuSet[m.sku] = true
	}

	var skus []string
	for sku := range skuSet {
		skus = append(skus, sku)
	}
	products := map[string]domain.CatalogProduct{}
	if len(skus) > 0 {
		products, err = s.catalog.FetchProducts(ctx, skus)
		if err != nil {
			return nil, err
		}
	}

	for _, idx := range toSearch {
		bestSKU := ""
		bestScore := -1
		bestName := -1
		for _, candidate := range candidatesPerItem[idx] {
			product, ok := products[candidate.SKU]
			if !ok {
				continue
			}
			total, name := matchScore(items[idx], product, settings)
			if total > bestScore || (total == bestScore && name > bestName) {
				bestSKU = product.SKU
				bestScore = total
				bestName = name
			}
		}
		if bestSKU == "" {
			continue
		}
		matches[idx] = resolved{sku: bestSKU, confidence: bestScore}
		entry := &domain.CacheEntry{SKU: bestSKU, Confidence: bestScore, StoredAt: time.Now()}
		if err := s.cache.Put(ctx, receiptCacheKey(items[idx].Name), entry); err != nil {
			log.Printf("[MATCH] Failed to cache receipt match %q: %v", items[idx].Name, err)
		}
	}

	out := make([]domain.ReceiptLine, len(items))
	copy(out, items)
	for idx, m := range matches {
		out[idx].MatchConfidence = m.confidence
		if m.confidence < threshold {
			if s.debug {
				log.Printf("[MATCH] Skipping low-confidence match %q -> %s (score=%d, threshold=%d)",
					items[idx].Name, m.sku, m.confidence, threshold)
			}
			continue
		}
		if product, ok := products[m.sku]; ok {
			out[idx] = enrichLine(out[idx], product, m.confidence)
		}
	}
	return out, nil
}

// searchCandidates searches the catalog for a receipt name, trying the raw
// printed text first and the expanded form second.
func (s *ReceiptService) searchCandidates(ctx context.Context, name string, settings domain.MatchSettings) ([]domain.CatalogProduct, error) {
	attempts := []string{strings.TrimSpace(name)}
	if cleaned := CleanReceiptName(name); !strings.EqualFold(cleaned, attempts[0]) && cleaned != "" {
		attempts = append(attempts, cleaned)
	}

	var lastErr error
	for _, attempt := range attempts {
		candidates, err := s.catalog.Search(ctx, attempt, settings.MaxProductCandidates)
		if err != nil {
			lastErr = err
			continue
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
	}
	return nil, lastErr
}
