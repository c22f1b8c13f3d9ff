package ocr

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	totalPattern  = regexp.MustCompile(`(?i)\b(?:grand\s+total|total|amount\s+due|balance\s+due)\b[^0-9\n]*([0-9]{1,3}(?:[ ,][0-9]{3})*(?:\.[0-9]{1,2})?|[0-9]+(?:\.[0-9]{1,2})?)`)
	moneyPattern  = regexp.MustCompile(`\b([0-9]{1,3}(?:,[0-9]{3})*\.[0-9]{2}|[0-9]+\.[0-9]{2})\b`)
	isoDate       = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	numericDate   = regexp.MustCompile(`\b(\d{1,2})[/.-](\d{1,2})[/.-](\d{2,4})\b`)
	hasLetters    = regexp.MustCompile(`[A-Za-z]{2,}`)
	merchantNoise = regexp.MustCompile(`(?i)\b(receipt|invoice|tax|date|time|tel|phone|www\.|http)`)
)

// Parse extracts the fields a receipt usually carries from raw OCR text.
func Parse(text string) *Result {
	res := &Result{Success: true, Text: text}
	res.Amount = parseAmount(text)
	res.Date = parseDate(text)
	res.Merchant = parseMerchant(text)
	return res
}

// parseAmount prefers a labelled total and falls back to the largest
// money-looking figure.
func parseAmount(text string) *decimal.Decimal {
	if m := totalPattern.FindStringSubmatch(text); m != nil {
		if d, ok := toDecimal(m[1]); ok {
			return &d
		}
	}

	var best *decimal.Decimal
	for _, m := range moneyPattern.FindAllStringSubmatch(text, -1) {
		d, ok := toDecimal(m[1])
		if !ok {
			continue
		}
		if best == nil || d.GreaterThan(*best) {
			v := d
			best = &v
		}
	}
	return best
}

func toDecimal(raw string) (decimal.Decimal, bool) {
	raw = strings.NewReplacer(",", "", " ", "").Replace(raw)
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, false
	}
	return d, true
}

func parseDate(text string) *string {
	if m := isoDate.FindString(text); m != "" {
		if t, err := time.Parse("2006-01-02", m); err == nil {
			s := t.Format("2006-01-02")
			return &s
		}
	}

	for _, m := range numericDate.FindAllStringSubmatch(text, -1) {
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		// Day first, then month first.
		for _, layout := range []string{"2-1-2006", "1-2-2006"} {
			if t, err := time.Parse(layout, m[1]+"-"+m[2]+"-"+year); err == nil {
				s := t.Format("2006-01-02")
				return &s
			}
		}
	}
	return nil
}

func parseMerchant(text string) *string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !hasLetters.MatchString(line) || merchantNoise.MatchString(line) {
			continue
		}
		if moneyPattern.MatchString(line) {
			continue
		}
		return &line
	}
	return nil
}
