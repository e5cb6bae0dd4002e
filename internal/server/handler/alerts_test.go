package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"bookwatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeStream serves the newest entries of a canned history, oldest first,
// the way the Redis stream reader does.
type fakeStream struct {
	msgs      []domain.StreamMessage
	gotStream string
	gotCount  int
}

func (f *fakeStream) StreamRecent(ctx context.Context, stream string, count int) ([]domain.StreamMessage, error) {
	f.gotStream = stream
	f.gotCount = count
	if count < len(f.msgs) {
		return f.msgs[len(f.msgs)-count:], nil
	}
	return f.msgs, nil
}

func whaleMessage(t *testing.T, id string, price float64) domain.StreamMessage {
	t.Helper()
	payload, err := json.Marshal(domain.WhaleAlert{
		ID: id, Time: 1700000000000, Price: price, Quantity: 12,
		Side: domain.TakerBuy, Symbol: "BTCUSDT",
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return domain.StreamMessage{ID: id, Payload: payload}
}

func TestListRecentReturnsNewestOldestFirst(t *testing.T) {
	stream := &fakeStream{msgs: []domain.StreamMessage{
		whaleMessage(t, "a", 100),
		whaleMessage(t, "b", 101),
		whaleMessage(t, "c", 102),
	}}
	h := NewAlertsHandler(stream, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/recent?limit=2", nil)
	rec := httptest.NewRecorder()
	h.ListRecent(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status got %d want 200", rec.Code)
	}
	if stream.gotStream != alertLogStream {
		t.Fatalf("stream got %q want %q", stream.gotStream, alertLogStream)
	}
	// The limit must bound the stream read itself, not just the response.
	if stream.gotCount != 2 {
		t.Fatalf("read count got %d want 2", stream.gotCount)
	}

	var body struct {
		Alerts []domain.WhaleAlert `json:"alerts"`
		Count  int                 `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 2 || len(body.Alerts) != 2 {
		t.Fatalf("count got %d/%d want 2", body.Count, len(body.Alerts))
	}
	// The two newest entries, oldest first.
	if body.Alerts[0].ID != "b" || body.Alerts[1].ID != "c" {
		t.Fatalf("order got [%s %s] want [b c]", body.Alerts[0].ID, body.Alerts[1].ID)
	}
}

func TestListRecentSkipsUndecodableEntries(t *testing.T) {
	stream := &fakeStream{msgs: []domain.StreamMessage{
		{ID: "junk", Payload: []byte("not json")},
		whaleMessage(t, "a", 100),
	}}
	h := NewAlertsHandler(stream, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/recent", nil)
	rec := httptest.NewRecorder()
	h.ListRecent(rec, req)

	var body struct {
		Alerts []domain.WhaleAlert `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Alerts) != 1 || body.Alerts[0].ID != "a" {
		t.Fatalf("alerts got %+v want only the decodable entry", body.Alerts)
	}
}

func TestListRecentWithoutHistoryAnswers503(t *testing.T) {
	h := NewAlertsHandler(nil, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/alerts/recent", nil)
	rec := httptest.NewRecorder()
	h.ListRecent(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status got %d want 503", rec.Code)
	}
}
