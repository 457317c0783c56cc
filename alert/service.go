// Package alert implements the HTTP ingestion endpoint of §4.1: parsing,
// LRU dedupe, trace creation, and non-blocking dispatch into the trading
// engine. Grounded on the original's alert_service.py handler flow and
// parser.py grammar (announcement package), with the HTTP layer adapted
// from the teacher's gin-based API (SynapseStrike/api/tactics.go).
package alert

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"momentum-engine/announcement"
	"momentum-engine/logger"
	"momentum-engine/metrics"
)

// Store is the subset of the persistence layer the Alert Service needs.
type Store interface {
	SaveAnnouncement(announcement.Announcement) error
	CreateTrace(traceID, ticker string) error
	AppendTraceEvent(traceID, kind, reason string) error
	FindTraceByTicker(ticker string) (string, error)
}

// Dispatch is the engine-side callback invoked for every accepted alert.
// It MUST return immediately (spec §4.1 step 6): the implementation is
// expected to enqueue the alert and hand off to the engine's own
// goroutine, never performing strategy evaluation synchronously on the
// HTTP handler's goroutine.
type Dispatch interface {
	OnAlert(a announcement.Announcement, traceID string, mentionCount int, raw json.RawMessage)
}

// Service is the live /alert HTTP endpoint.
type Service struct {
	dedupe   *dedupeSet
	mentions *mentionTracker
	store    Store
	dispatch Dispatch
	log      *logger.Logger
}

// NewService builds an Alert Service. newYork is the location used for
// mention-count day boundaries (America/New_York, per §4.4.1's session
// calculation).
func NewService(store Store, dispatch Dispatch, newYork *time.Location, log *logger.Logger) *Service {
	return &Service{
		dedupe:   newDedupeSet(500),
		mentions: newMentionTracker(newYork),
		store:    store,
		dispatch: dispatch,
		log:      log,
	}
}

// Router builds the gin engine serving POST/OPTIONS /alert with the CORS
// headers §4.1 requires.
func (s *Service) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.POST("/alert", s.handleAlert)
	r.OPTIONS("/alert", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Next()
	}
}

// alertRequest is the §6.1 wire shape.
type alertRequest struct {
	Ticker    string `json:"ticker"`
	PriceInfo string `json:"price_info"`
	Channel   string `json:"channel"`
	Content   string `json:"content"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
}

var tickerFieldRe = regexp.MustCompile(`[A-Z]{2,5}`)
var priceInfoRe = regexp.MustCompile(`\$[\d.]+c?`)

func (s *Service) handleAlert(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "failed to read request body"})
		return
	}

	var req alertRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "malformed json: " + err.Error()})
		return
	}

	metrics.AlertsReceivedTotal.Inc()

	timestamp, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		// §4.1 step 1: fall back to receive-time on parse failure.
		timestamp = time.Now().UTC()
	} else {
		timestamp = timestamp.UTC()
	}

	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if m := tickerFieldRe.FindString(ticker); m != "" {
		ticker = m
	}

	alertKey := fmt.Sprintf("%s:%s", ticker, timestamp.Truncate(time.Minute).Format(time.RFC3339))
	if s.dedupe.seen(alertKey) {
		metrics.AlertsDeduplicatedTotal.Inc()
		if traceID, err := s.store.FindTraceByTicker(ticker); err == nil {
			_ = s.store.AppendTraceEvent(traceID, "alert_deduplicated", "")
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	a := s.buildAnnouncement(req, ticker, timestamp)

	if err := s.store.SaveAnnouncement(a); err != nil {
		s.log.Warnf("⚠️ [Alert] failed to persist announcement %s: %v", ticker, err)
	}

	traceID := uuid.NewString()
	if err := s.store.CreateTrace(traceID, ticker); err != nil {
		s.log.Errorf("❌ [Alert] failed to create trace for %s: %v", ticker, err)
	}

	mentionCount := s.mentions.Record(ticker, timestamp)
	s.dispatch.OnAlert(a, traceID, mentionCount, json.RawMessage(raw))

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// buildAnnouncement implements §4.1 steps 3–4: it first tries the full
// chat-message grammar against content, and falls back to the top-level
// ticker/price_info/channel/author fields (still a valid, if sparse,
// Announcement) when content doesn't parse — an unparseable alert is
// "received but not tradeable", not dropped outright, so filters still
// see a ticker to reject on.
func (s *Service) buildAnnouncement(req alertRequest, ticker string, timestamp time.Time) announcement.Announcement {
	if a, ok := announcement.ParseLine(req.Content, timestamp); ok {
		a.Ticker = ticker
		if req.Channel != "" {
			a.Channel = req.Channel
		}
		if req.Author != "" {
			a.Author = req.Author
		}
		a.Source = "live"
		return a
	}

	price, _ := announcement.ParsePrice(priceInfoRe.FindString(req.PriceInfo))
	return announcement.Announcement{
		Ticker:         ticker,
		Timestamp:      timestamp,
		PriceThreshold: price,
		Channel:        req.Channel,
		Author:         req.Author,
		Country:        "UNKNOWN",
		SourceMessage:  req.Content,
		Source:         "live",
	}
}
