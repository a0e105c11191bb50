package usecase

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/jumboapi/backend/internal/domain"
)

// Digital receipts arrive as a print-layout JSON: nested documents holding
// print sections of text objects, each a row of text cells exactly as the
// register would print them.
type printText struct {
	Text string `json:"text"`
}

type printTextLine struct {
	Texts []printText `json:"texts"`
}

type printTextObject struct {
	TextLines []printTextLine `json:"textLines"`
}

type printSection struct {
	TextObjects []printTextObject `json:"textObjects"`
}

type printDocument struct {
	Documents     []printDocument `json:"documents"`
	PrintSections []printSection  `json:"printSections"`
}

type printLayout struct {
	Documents []printDocument `json:"documents"`
}

var (
	quantityLineRegex = regexp.MustCompile(`^\s*(\d+)\s*[Xx]\s*(\d+[,.]\d+)`)
	itemCountRegex    = regexp.MustCompile(`Aantal artikelen.*?:\s*(\d+)`)
)

const depositLineName = "STATIEGELD"

// ParseReceiptDocument turns the raw print-layout JSON of a digital receipt
// into structured line items, deposits, totals and the VAT breakdown.
func ParseReceiptDocument(rawJSON string) *domain.ReceiptBreakdown {
	var layout printLayout
	if err := json.Unmarshal([]byte(rawJSON), &layout); err != nil {
		return &domain.ReceiptBreakdown{Items: []domain.ReceiptLine{}, ParseError: "invalid receipt JSON"}
	}

	rows := collectRows(layout)
	if rows == nil {
		return &domain.ReceiptBreakdown{Items: []domain.ReceiptLine{}, ParseError: "unexpected receipt structure"}
	}

	var (
		items         []domain.ReceiptLine
		total         float64
		paymentMethod string
		vatRows       [][]string
		itemCount     int
	)

	i := 0
	inItems := false
	for i < len(rows) {
		texts := rows[i]
		joined := joinRow(texts)

		// Items run from the OMSCHRIJVING/BEDRAG column header to "Totaal"
		if strings.Contains(joined, "OMSCHRIJVING") && strings.Contains(joined, "BEDRAG") {
			inItems = true
			i++
			if i < len(rows) && isSeparator(strings.Join(rows[i], "")) {
				i++
			}
			continue
		}

		if inItems && strings.HasPrefix(joined, "Totaal") {
			inItems = false
			for _, t := range texts {
				if v, ok := parsePrintedAmount(t); ok {
					total = v
				}
			}
			i++
			continue
		}

		if inItems {
			first := ""
			if len(texts) > 0 {
				first = strings.TrimSpace(texts[0])
			}
			if first == "" || isSeparator(first) {
				i++
				continue
			}

			// "  2 X 0,94" adjusts the quantity of the preceding item line
			if m := quantityLineRegex.FindStringSubmatch(first); m != nil && len(items) > 0 {
				last := &items[len(items)-1]
				last.Quantity, _ = strconv.Atoi(m[1])
				last.UnitPrice, _ = strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64)
				for j := len(texts) - 1; j >= 0; j-- {
					if v, ok := parsePrintedAmount(texts[j]); ok {
						last.Price = v
						break
					}
				}
				i++
				continue
			}

			var price float64
			for j := len(texts) - 1; j >= 0; j-- {
				if v, ok := parsePrintedAmount(texts[j]); ok {
					price = v
					break
				}
			}
			isPromo := len(texts) > 1 && strings.TrimSpace(texts[1]) == "P"

			items = append(items, domain.ReceiptLine{
				Name:      first,
				Price:     price,
				Quantity:  1,
				UnitPrice: price,
				IsPromo:   isPromo,
				IsDeposit: strings.EqualFold(first, depositLineName),
			})
			i++
			continue
		}

		if strings.HasPrefix(joined, "Betaald") {
			i++
			if i < len(rows) && len(rows[i]) > 0 {
				paymentMethod = strings.TrimSpace(rows[i][0])
			}
			i++
			continue
		}

		if strings.HasPrefix(joined, "BTW%") || strings.Contains(joined, "Bedrag excl") {
			i++
			for i < len(rows) {
				row := rows[i]
				rowJoined := joinRow(row)
				if !strings.Contains(rowJoined, "%") && !strings.HasPrefix(rowJoined, "BTW Totaal") {
					break
				}
				var parts []string
				for _, t := range row {
					if trimmed := strings.TrimSpace(t); trimmed != "" {
						parts = append(parts, trimmed)
					}
				}
				vatRows = append(vatRows, parts)
				i++
			}
			continue
		}

		if m := itemCountRegex.FindStringSubmatch(joined); m != nil {
			itemCount, _ = strconv.Atoi(m[1])
			i++
			continue
		}

		i++
	}

	breakdown := &domain.ReceiptBreakdown{
		Items:         []domain.ReceiptLine{},
		Deposits:      []domain.ReceiptLine{},
		Total:         total,
		PaymentMethod: paymentMethod,
		ItemCount:     itemCount,
	}
	for _, item := range items {
		if item.IsDeposit {
			breakdown.Deposits = append(breakdown.Deposits, item)
		} else {
			breakdown.Items = append(breakdown.Items, item)
		}
	}
	for _, parts := range vatRows {
		if len(parts) >= 3 && !strings.Contains(parts[0], "Totaal") {
			breakdown.VATSummary = append(breakdown.VATSummary, domain.VATLine{
				Rate:       parts[0],
				AmountExcl: parts[1],
				VATAmount:  parts[2],
			})
		}
	}
	return breakdown
}

// collectRows flattens the nested print layout into rows of text cells.
func collectRows(layout printLayout) [][]string {
	if len(layout.Documents) == 0 || len(layout.Documents[0].Documents) == 0 {
		return nil
	}
	var rows [][]string
	for _, section := range layout.Documents[0].Documents[0].PrintSections {
		for _, obj := range section.TextObjects {
			for _, line := range obj.TextLines {
				row := make([]string, 0, len(line.Texts))
				for _, t := range line.Texts {
					row = append(row, t.Text)
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

func joinRow(texts []string) string {
	var parts []string
	for _, t := range texts {
		if trimmed := strings.TrimSpace(t); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, " ")
}

func isSeparator(s string) bool {
	return strings.HasPrefix(s, "=") || strings.HasPrefix(s, "-")
}

// parsePrintedAmount parses a money cell as printed ("1,89") into a float.
func parsePrintedAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
