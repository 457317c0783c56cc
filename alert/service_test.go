package alert

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum-engine/announcement"
	"momentum-engine/logger"
)

type fakeStore struct {
	announcements []announcement.Announcement
	traces        map[string]string // ticker -> traceID
	events        []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{traces: make(map[string]string)}
}

func (f *fakeStore) SaveAnnouncement(a announcement.Announcement) error {
	f.announcements = append(f.announcements, a)
	return nil
}
func (f *fakeStore) CreateTrace(traceID, ticker string) error {
	f.traces[ticker] = traceID
	return nil
}
func (f *fakeStore) AppendTraceEvent(traceID, kind, reason string) error {
	f.events = append(f.events, kind)
	return nil
}
func (f *fakeStore) FindTraceByTicker(ticker string) (string, error) {
	if id, ok := f.traces[ticker]; ok {
		return id, nil
	}
	return "", errors.New("not found")
}

type fakeDispatch struct {
	calls []announcement.Announcement
}

func (f *fakeDispatch) OnAlert(a announcement.Announcement, traceID string, mentionCount int, raw json.RawMessage) {
	f.calls = append(f.calls, a)
}

func newTestService() (*Service, *fakeStore, *fakeDispatch) {
	gin.SetMode(gin.TestMode)
	loc, _ := time.LoadLocation("America/New_York")
	store := newFakeStore()
	dispatch := &fakeDispatch{}
	svc := NewService(store, dispatch, loc, logger.Nop())
	return svc, store, dispatch
}

func postAlert(t *testing.T, svc *Service, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/alert", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	return rec
}

func TestHandleAlertAcceptsAndDispatches(t *testing.T) {
	svc, store, dispatch := newTestService()

	rec := postAlert(t, svc, map[string]interface{}{
		"ticker":    "ABCD",
		"content":   "ABCD < $1.50 - Some Headline - Link ~ :flag_us:",
		"channel":   "small-caps",
		"author":    "bot",
		"timestamp": time.Now().Format(time.RFC3339),
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, dispatch.calls, 1)
	assert.Equal(t, "ABCD", dispatch.calls[0].Ticker)
	require.Len(t, store.announcements, 1)
}

func TestHandleAlertDeduplicatesRepeatedAlert(t *testing.T) {
	svc, _, dispatch := newTestService()
	ts := time.Now().Format(time.RFC3339)

	body := map[string]interface{}{
		"ticker": "ABCD", "content": "ABCD < $1.50 - Headline - Link ~ :flag_us:", "timestamp": ts,
	}
	postAlert(t, svc, body)
	rec := postAlert(t, svc, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, dispatch.calls, 1, "second identical alert should be deduplicated, not dispatched again")
}

func TestHandleAlertMalformedJSONRejected(t *testing.T) {
	svc, _, _ := newTestService()
	req := httptest.NewRequest(http.MethodPost, "/alert", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	svc.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAlertFallsBackToSparseFieldsWhenContentUnparsable(t *testing.T) {
	svc, _, dispatch := newTestService()
	rec := postAlert(t, svc, map[string]interface{}{
		"ticker": "WXYZ", "content": "not a grammar-matching line", "price_info": "$3.25",
		"timestamp": time.Now().Format(time.RFC3339),
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, dispatch.calls, 1)
	assert.Equal(t, "WXYZ", dispatch.calls[0].Ticker)
	assert.InDelta(t, 3.25, dispatch.calls[0].PriceThreshold, 1e-9)
	assert.Equal(t, "UNKNOWN", dispatch.calls[0].Country)
}

func TestHandleAlertBadTimestampFallsBackToNow(t *testing.T) {
	svc, _, dispatch := newTestService()
	rec := postAlert(t, svc, map[string]interface{}{
		"ticker": "ABCD", "content": "ABCD < $1.50 - Headline - Link ~ :flag_us:", "timestamp": "not-a-timestamp",
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, dispatch.calls, 1)
	assert.WithinDuration(t, time.Now(), dispatch.calls[0].Timestamp, 5*time.Second)
}

func TestHandleAlertDistinctTimestampsAreNotDeduplicated(t *testing.T) {
	svc, _, dispatch := newTestService()
	base := time.Now()

	for i := 0; i < 3; i++ {
		postAlert(t, svc, map[string]interface{}{
			"ticker":    "ABCD",
			"content":   "ABCD < $1.50 - Headline - Link ~ :flag_us:",
			"timestamp": base.Add(time.Duration(i) * time.Hour).Format(time.RFC3339),
		})
	}

	require.Len(t, dispatch.calls, 3)
}
