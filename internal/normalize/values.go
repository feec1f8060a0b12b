package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/stratix-platform/initiative-import/internal/model"
	"github.com/stratix-platform/initiative-import/internal/sheet"
)

// CellFromValue converts a decoded JSON value into a cell.
func CellFromValue(v any) model.Cell {
	switch x := v.(type) {
	case nil:
		return model.Cell{}
	case string:
		return model.TextCell(x)
	case float64:
		return model.NumberCell(x)
	case int:
		return model.NumberCell(float64(x))
	case bool:
		return model.BoolCell(x)
	case time.Time:
		return model.DateCell(x)
	}
	return model.Cell{}
}

func optionalText(c model.Cell) *string {
	s := strings.TrimSpace(c.Text)
	if c.IsBlank() || s == "" {
		return nil
	}
	return &s
}

// parseNumber reads a plain number, accepting a decimal comma.
func parseNumber(c model.Cell) (float64, bool) {
	switch c.Kind {
	case model.CellNumber:
		return c.Number, true
	case model.CellString:
		s := strings.ReplaceAll(strings.TrimSpace(c.Text), " ", "")
		if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
			s = strings.Replace(s, ",", ".", 1)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// parseProgress reads a percentage with any "%" stripped. Values in (0, 1]
// are fractions and are scaled by 100, so "1%" and "1" both mean complete.
// The result is clamped to [0, ceiling].
func parseProgress(c model.Cell, ceiling float64) *float64 {
	var v float64
	switch c.Kind {
	case model.CellNumber:
		v = c.Number
		if v > 0 && v <= 1 {
			v *= 100
		}
	case model.CellString:
		n, ok := parseNumber(model.TextCell(strings.ReplaceAll(c.Text, "%", "")))
		if !ok {
			return nil
		}
		v = n
		if v > 0 && v <= 1 {
			v *= 100
		}
	default:
		return nil
	}
	v = math.Max(0, math.Min(v, ceiling))
	return &v
}

// parseMoney reads an amount, ignoring currency symbols and codes. With both
// separators present the last one is the decimal point; a lone comma
// followed by one or two digits is a decimal comma; a lone dot followed by
// exactly three digits is a thousands separator.
func parseMoney(c model.Cell) *decimal.Decimal {
	switch c.Kind {
	case model.CellNumber:
		d := decimal.NewFromFloat(c.Number)
		return &d
	case model.CellString:
	default:
		return nil
	}

	raw := strings.TrimSpace(c.Text)
	negative := strings.HasPrefix(raw, "-") || (strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")"))

	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return nil
	}

	lastDot, lastComma := strings.LastIndex(s, "."), strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	if negative {
		d = d.Neg()
	}
	return &d
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2006/01/02",
	"02/01/06",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// Excel serial numbers between 1900-01-01 and 9999-12-31.
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// parseDate reads typed dates, Excel serials and the common textual layouts
// (day first). Anything else falls back according to mode.
func parseDate(c model.Cell, mode model.DateFallback, now time.Time) *time.Time {
	switch c.Kind {
	case model.CellBlank:
		return nil
	case model.CellDate:
		t := c.Time
		return &t
	case model.CellNumber:
		if c.Number >= minExcelSerial && c.Number <= maxExcelSerial {
			t := xlsx.TimeFromExcelTime(c.Number, false)
			return &t
		}
	case model.CellString:
		raw := strings.TrimSpace(c.Text)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return &t
			}
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil && f >= minExcelSerial && f <= maxExcelSerial {
			t := xlsx.TimeFromExcelTime(f, false)
			return &t
		}
	}
	if mode == model.DateFallbackEndOfYear {
		t := time.Date(now.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)
		return &t
	}
	return nil
}

const (
	minWeight     = 0.1
	maxWeight     = 3.0
	defaultWeight = 1.0
)

func parseWeight(c model.Cell) float64 {
	w, ok := parseNumber(c)
	if !ok {
		return defaultWeight
	}
	return math.Max(minWeight, math.Min(w, maxWeight))
}

var truthy = map[string]bool{
	"si": true, "yes": true, "true": true, "x": true, "1": true, "y": true, "s": true,
	"verdadero": true, "✓": true, "✔": true, "✅": true,
}

func parseBool(c model.Cell) *bool {
	var v bool
	switch c.Kind {
	case model.CellBlank:
		return nil
	case model.CellBool:
		v = c.Bool
	case model.CellNumber:
		v = c.Number != 0
	default:
		v = truthy[sheet.Fold(c.Text)]
	}
	return &v
}
