package store

import (
	"encoding/json"
	"fmt"

	"momentum-engine/announcement"
)

type fundamentalsBlob struct {
	FloatShares    float64  `json:"float_shares,omitempty"`
	FloatKnown     bool     `json:"float_known,omitempty"`
	IOPercent      float64  `json:"io_percent,omitempty"`
	IOKnown        bool     `json:"io_known,omitempty"`
	MarketCap      float64  `json:"market_cap,omitempty"`
	MarketCapKnown bool     `json:"market_cap_known,omitempty"`
	ShortInterest  float64  `json:"short_interest,omitempty"`
	ShortIntKnown  bool     `json:"short_int_known,omitempty"`
	RegSHO         bool     `json:"reg_sho,omitempty"`
	HighCTB        bool     `json:"high_ctb,omitempty"`
	FinancingTags  []string `json:"financing_tags,omitempty"`
}

// SaveAnnouncement persists an Announcement, unique on (ticker, timestamp)
// per §4.6. A duplicate key is not an error — the Alert Service's dedupe
// set should have already caught it, but the unique constraint is the
// durable backstop.
func (db *DB) SaveAnnouncement(a announcement.Announcement) error {
	blob, err := json.Marshal(fundamentalsBlob{
		FloatShares: a.FloatShares, FloatKnown: a.FloatKnown,
		IOPercent: a.IOPercent, IOKnown: a.IOKnown,
		MarketCap: a.MarketCap, MarketCapKnown: a.MarketCapKnown,
		ShortInterest: a.ShortInterest, ShortIntKnown: a.ShortIntKnown,
		RegSHO: a.RegSHO, HighCTB: a.HighCTB,
		FinancingTags: a.HeadlineFinancingTags,
	})
	if err != nil {
		return fmt.Errorf("marshal fundamentals: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO announcements (ticker, timestamp, price_threshold, headline, country, channel, author, direction, source, raw_content, fundamentals)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, timestamp) DO NOTHING
	`, a.Ticker, a.Timestamp, a.PriceThreshold, a.Headline, a.Country, a.Channel, a.Author, a.Direction, a.Source, a.SourceMessage, string(blob))
	if err != nil {
		return fmt.Errorf("save announcement %s/%s: %w", a.Ticker, a.Timestamp, err)
	}
	return nil
}
