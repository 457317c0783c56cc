package strategy

import (
	"fmt"

	"momentum-engine/announcement"
)

// FilterInput bundles everything PassesFilters needs beyond the
// announcement itself: facts the caller (the alert/engine layer) already
// knows and the strategy shouldn't recompute.
type FilterInput struct {
	Session      announcement.Session
	MentionCount int // alert package's per-ticker-per-day counter (SPEC_FULL supplement)
}

// PassesFilters evaluates the filter chain in the order spec §4.4.1 names
// them. It returns the first failure reason, or ("", true) if every filter
// passes.
func (f FilterSet) PassesFilters(a announcement.Announcement, in FilterInput) (reason string, ok bool) {
	if len(f.AllowedChannels) > 0 && !contains(f.AllowedChannels, a.Channel) {
		return fmt.Sprintf("channel %q not allowed", a.Channel), false
	}
	if len(f.AllowedDirections) > 0 && !contains(f.AllowedDirections, a.Direction) {
		return fmt.Sprintf("direction %q not allowed", a.Direction), false
	}
	if len(f.AllowedSessions) > 0 && !contains(f.AllowedSessions, string(in.Session)) {
		return fmt.Sprintf("session %q not allowed", in.Session), false
	}
	if f.MinPrice > 0 && a.PriceThreshold < f.MinPrice {
		return fmt.Sprintf("price %.2f below minimum %.2f", a.PriceThreshold, f.MinPrice), false
	}
	if f.MaxPrice > 0 && a.PriceThreshold > f.MaxPrice {
		return fmt.Sprintf("price %.2f above maximum %.2f", a.PriceThreshold, f.MaxPrice), false
	}
	if len(f.CountryBlacklist) > 0 && contains(f.CountryBlacklist, a.Country) {
		return fmt.Sprintf("country %q blacklisted", a.Country), false
	}
	if f.MaxIntradayMentions > 0 && in.MentionCount > f.MaxIntradayMentions {
		return fmt.Sprintf("mention count %d exceeds cap %d", in.MentionCount, f.MaxIntradayMentions), false
	}
	if f.ExcludeFinancing && a.HeadlineIsFinancing {
		return fmt.Sprintf("financing headline (%v)", a.HeadlineFinancingTags), false
	}
	return "", true
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
