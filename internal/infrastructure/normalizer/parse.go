package normalizer

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	thousandsPattern = regexp.MustCompile(`^\d{1,3}(,\d{3})+(\.\d+)?$`)
	numberPattern    = regexp.MustCompile(`\d+(\.\d+)?`)
	currencyTokens   = []string{"US$", "R$", "CNY", "RMB", "USD", "BRL", "¥", "￥", "$", "元"}
)

// ParsePrice parses upstream price values. Strings may carry currency symbols,
// thousands separators or a range ("12.00-15.00", lowest bound is used).
func ParsePrice(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		return parsePriceString(t)
	}
	return decimal.Zero, false
}

func parsePriceString(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(s, "\u00a0", "")
	for _, token := range currencyTokens {
		s = strings.ReplaceAll(s, token, "")
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, false
	}
	if i := strings.IndexAny(s, "-~"); i > 0 {
		s = s[:i]
	}

	switch {
	case strings.Contains(s, ",") && strings.Contains(s, "."):
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			// 1.234,50
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case thousandsPattern.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	default:
		s = strings.ReplaceAll(s, ",", ".")
	}

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// ParseCount parses sales and quantity values such as 1234, "1,234", "500+" or "1.2万+"
func ParseCount(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int:
		return int64(t)
	case int64:
		return t
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return 0
		}
		return int64(n)
	case string:
		return parseCountString(t)
	}
	return 0
}

func parseCountString(s string) int64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	multiplier := 1.0
	switch {
	case strings.Contains(s, "万"):
		multiplier = 10000
	case strings.Contains(s, "亿"):
		multiplier = 100000000
	case strings.HasSuffix(strings.TrimRight(strings.ToLower(s), "+"), "k"):
		multiplier = 1000
	}
	m := numberPattern.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return int64(n * multiplier)
}

// ParseFloat parses ratings and scores
func ParseFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}

// FixImageURL turns protocol-relative URLs ("//img...") into https URLs
func FixImageURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}
