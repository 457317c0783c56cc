package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"momentum-engine/announcement"
)

func TestPassesFiltersAllPass(t *testing.T) {
	f := FilterSet{MinPrice: 1, MaxPrice: 20}
	a := announcement.Announcement{PriceThreshold: 5}
	reason, ok := f.PassesFilters(a, FilterInput{Session: announcement.SessionMarket})
	assert.True(t, ok)
	assert.Empty(t, reason)
}

func TestPassesFiltersPriceBelowMinimum(t *testing.T) {
	f := FilterSet{MinPrice: 1}
	a := announcement.Announcement{PriceThreshold: 0.50}
	reason, ok := f.PassesFilters(a, FilterInput{})
	assert.False(t, ok)
	assert.Contains(t, reason, "below minimum")
}

func TestPassesFiltersPriceAboveMaximum(t *testing.T) {
	f := FilterSet{MaxPrice: 20}
	a := announcement.Announcement{PriceThreshold: 25}
	reason, ok := f.PassesFilters(a, FilterInput{})
	assert.False(t, ok)
	assert.Contains(t, reason, "above maximum")
}

func TestPassesFiltersCountryBlacklisted(t *testing.T) {
	f := FilterSet{CountryBlacklist: []string{"CN"}}
	a := announcement.Announcement{Country: "CN"}
	reason, ok := f.PassesFilters(a, FilterInput{})
	assert.False(t, ok)
	assert.Contains(t, reason, "blacklisted")
}

func TestPassesFiltersMentionCapExceeded(t *testing.T) {
	f := FilterSet{MaxIntradayMentions: 2}
	reason, ok := f.PassesFilters(announcement.Announcement{}, FilterInput{MentionCount: 3})
	assert.False(t, ok)
	assert.Contains(t, reason, "mention count")
}

func TestPassesFiltersExcludesFinancingHeadline(t *testing.T) {
	f := FilterSet{ExcludeFinancing: true}
	a := announcement.Announcement{HeadlineIsFinancing: true, HeadlineFinancingTags: []string{"offering"}}
	reason, ok := f.PassesFilters(a, FilterInput{})
	assert.False(t, ok)
	assert.Contains(t, reason, "financing")
}

func TestPassesFiltersChannelAllowlist(t *testing.T) {
	f := FilterSet{AllowedChannels: []string{"small-caps"}}
	reason, ok := f.PassesFilters(announcement.Announcement{Channel: "large-caps"}, FilterInput{})
	assert.False(t, ok)
	assert.Contains(t, reason, "channel")
}

func TestPassesFiltersSessionRestriction(t *testing.T) {
	f := FilterSet{AllowedSessions: []string{"market"}}
	reason, ok := f.PassesFilters(announcement.Announcement{}, FilterInput{Session: announcement.SessionPremarket})
	assert.False(t, ok)
	assert.Contains(t, reason, "session")
}

func TestPassesFiltersEmptyListsAllowEverything(t *testing.T) {
	f := FilterSet{}
	_, ok := f.PassesFilters(announcement.Announcement{Country: "KP", Channel: "anything"}, FilterInput{})
	assert.True(t, ok)
}
