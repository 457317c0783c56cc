package announcement

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	tickerRe    = regexp.MustCompile(`^([A-Z]+)`)
	priceRe     = regexp.MustCompile(`<\s*(\$[\d.]+c?)`)
	headlineRe  = regexp.MustCompile(`-\s*(.+?)\s*-\s*Link`)
	flagRe      = regexp.MustCompile(`:flag_(\w+):`)
	floatRe     = regexp.MustCompile(`Float:\s*([\d.]+\s*[kKmMbB]?)`)
	ioRe        = regexp.MustCompile(`IO:\s*([\d.]+)%`)
	mcRe        = regexp.MustCompile(`MC:\s*([\d.]+\s*[kKmMbB]?)`)
	siRe        = regexp.MustCompile(`SI:\s*([\d.]+)%`)
	suffixRe    = regexp.MustCompile(`([\d.]+)\s*([kKmMbB])?`)
	priceTrimRe = regexp.MustCompile(`[$c]`)
)

// ParseValueWithSuffix parses a value like "139 M", "3.9 M", "490 k", "7.7 B"
// into its absolute float form.
func ParseValueWithSuffix(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	m := suffixRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	switch strings.ToUpper(m[2]) {
	case "K":
		n *= 1_000
	case "M":
		n *= 1_000_000
	case "B":
		n *= 1_000_000_000
	}
	return n, true
}

// ParsePrice parses a price like "$.50c", "$4", "$0.50" into a float.
func ParsePrice(s string) (float64, bool) {
	s = priceTrimRe.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseCountryFromFlag extracts a country code from a Discord flag emoji
// like ":flag_us:" -> "US". Returns "UNKNOWN" if no flag is present.
func ParseCountryFromFlag(line string) string {
	m := flagRe.FindStringSubmatch(line)
	if m == nil {
		return "UNKNOWN"
	}
	return strings.ToUpper(m[1])
}

// ParseLine parses a single chat-message line into an Announcement. Lines
// that don't match the grammar (no leading ticker, no price threshold)
// return ok=false — they are dropped, not treated as errors.
func ParseLine(line string, timestamp time.Time) (Announcement, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Announcement{}, false
	}

	tickerMatch := tickerRe.FindStringSubmatch(strings.TrimSpace(strings.TrimLeft(line, "↑↗")))
	if tickerMatch == nil {
		return Announcement{}, false
	}
	ticker := tickerMatch[1]

	priceMatch := priceRe.FindStringSubmatch(line)
	if priceMatch == nil {
		return Announcement{}, false
	}
	price, ok := ParsePrice(priceMatch[1])
	if !ok {
		return Announcement{}, false
	}

	headline := ""
	if hm := headlineRe.FindStringSubmatch(line); hm != nil {
		headline = strings.TrimSpace(hm[1])
	}

	a := Announcement{
		Ticker:         ticker,
		Timestamp:      timestamp,
		PriceThreshold: price,
		Headline:       headline,
		Country:        ParseCountryFromFlag(line),
		RegSHO:         strings.Contains(line, "Reg SHO"),
		HighCTB:        strings.Contains(line, "High CTB"),
		SourceMessage:  line,
	}

	if fm := floatRe.FindStringSubmatch(line); fm != nil {
		if v, ok := ParseValueWithSuffix(fm[1]); ok {
			a.FloatShares, a.FloatKnown = v, true
		}
	}
	if im := ioRe.FindStringSubmatch(line); im != nil {
		if v, err := strconv.ParseFloat(im[1], 64); err == nil {
			a.IOPercent, a.IOKnown = v, true
		}
	}
	if mm := mcRe.FindStringSubmatch(line); mm != nil {
		if v, ok := ParseValueWithSuffix(mm[1]); ok {
			a.MarketCap, a.MarketCapKnown = v, true
		}
	}
	if sm := siRe.FindStringSubmatch(line); sm != nil {
		if v, err := strconv.ParseFloat(sm[1], 64); err == nil {
			a.ShortInterest, a.ShortIntKnown = v, true
		}
	}

	switch {
	case strings.HasPrefix(line, "↗"):
		a.Direction = "up_right"
	case strings.HasPrefix(line, "↑"):
		a.Direction = "up"
	}

	a.HeadlineIsFinancing, a.HeadlineFinancingTags = ClassifyHeadline(headline)

	return a, true
}

// financingKeywords maps a detection tag to the substrings (lower-cased)
// that indicate dilutive/financing headlines, per the strategy filter
// named "exclude_financing_headlines".
var financingKeywords = []struct {
	tag      string
	keywords []string
}{
	{"offering", []string{"public offering", "registered direct offering", "private placement"}},
	{"atm", []string{"at-the-market", "atm offering", "at the market offering"}},
	{"warrants", []string{"warrant"}},
	{"convertible", []string{"convertible note", "convertible debenture", "convertible preferred"}},
	{"shelf", []string{"shelf registration", "s-3 registration", "form s-3"}},
	{"reverse_split", []string{"reverse stock split", "reverse split"}},
	{"dilution", []string{"dilutive", "dilution"}},
}

// ClassifyHeadline flags offering/ATM/warrant/convertible/shelf/reverse-
// split/dilution language in a headline, feeding the
// "exclude_financing_headlines" strategy filter.
func ClassifyHeadline(headline string) (bool, []string) {
	lower := strings.ToLower(headline)
	var tags []string
	for _, fk := range financingKeywords {
		for _, kw := range fk.keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, fk.tag)
				break
			}
		}
	}
	return len(tags) > 0, tags
}
