package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/vjranagit/leveltracker/pkg/api"
	"github.com/vjranagit/leveltracker/pkg/storage"
	"github.com/vjranagit/leveltracker/pkg/store"
	"github.com/vjranagit/leveltracker/pkg/types"
	"github.com/vjranagit/leveltracker/pkg/utils/logging"
)

func newServer(t *testing.T) (*store.Store, http.Handler) {
	t.Helper()
	st, err := store.Open(context.Background(), storage.NewMemorySlot(), store.WithLocation(time.UTC))
	gt.NoError(t, err).Required()
	return st, api.NewServer(":0", st, api.Options{}).Handler()
}

func do(h http.Handler, method, target string, body string, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestFormAdd(t *testing.T) {
	st, h := newServer(t)

	form := url.Values{"date": {"2024-01-10"}, "time": {"08:00"}, "level": {"15.2"}, "notes": {"fasted"}}
	rec := do(h, http.MethodPost, "/measurements", form.Encode(), "application/x-www-form-urlencoded")
	gt.Value(t, rec.Code).Equal(http.StatusSeeOther)
	gt.Value(t, st.Len()).Equal(1)

	t.Run("invalid submission is silently ignored", func(t *testing.T) {
		form := url.Values{"date": {""}, "level": {"15"}}
		rec := do(h, http.MethodPost, "/measurements", form.Encode(), "application/x-www-form-urlencoded")
		gt.Value(t, rec.Code).Equal(http.StatusSeeOther)
		gt.Value(t, st.Len()).Equal(1)
	})

	t.Run("page lists the entry", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/", "", "")
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.String(t, rec.Body.String()).Contains("10 January 2024, 08:00")
		gt.String(t, rec.Body.String()).Contains("fasted")
		gt.String(t, rec.Body.String()).Contains("/chart.png")
	})

	t.Run("form delete", func(t *testing.T) {
		id := st.Measurements()[0].ID
		rec := do(h, http.MethodPost, "/measurements/"+strconv.FormatInt(id, 10)+"/delete", "", "")
		gt.Value(t, rec.Code).Equal(http.StatusSeeOther)
		gt.Value(t, st.Len()).Equal(0)
	})
}

func TestJSONAPI(t *testing.T) {
	_, h := newServer(t)

	rec := do(h, http.MethodPost, "/api/v1/measurements", `{"date":"2024-01-10","time":"08:00","level":"15.2"}`, "application/json")
	gt.Value(t, rec.Code).Equal(http.StatusCreated)
	rec = do(h, http.MethodPost, "/api/v1/measurements", `{"date":"2024-01-05","time":"09:00","level":"40"}`, "application/json")
	gt.Value(t, rec.Code).Equal(http.StatusCreated)

	var created types.Measurement
	gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created)).Required()
	gt.Value(t, created.Level).Equal(40.0)

	t.Run("invalid add", func(t *testing.T) {
		rec := do(h, http.MethodPost, "/api/v1/measurements", `{"date":"2024-01-05","level":"x"}`, "application/json")
		gt.Value(t, rec.Code).Equal(http.StatusBadRequest)
	})

	t.Run("history is newest first", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/v1/measurements", "", "")
		gt.Value(t, rec.Code).Equal(http.StatusOK)

		var entries []types.HistoryEntry
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries)).Required()
		gt.Array(t, entries).Length(2).Required()
		gt.Value(t, entries[0].Measurement.Date).Equal("2024-01-10")
		gt.Value(t, entries[0].Classification).Equal(types.ClassNormal)
		gt.Value(t, entries[1].Classification).Equal(types.ClassHigh)
	})

	t.Run("summary", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/v1/summary", "", "")
		var got struct {
			Average float64 `json:"average"`
			Minimum float64 `json:"minimum"`
			Maximum float64 `json:"maximum"`
		}
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got)).Required()
		gt.Value(t, got.Average).Equal(27.6)
		gt.Value(t, got.Minimum).Equal(15.2)
		gt.Value(t, got.Maximum).Equal(40.0)
	})

	t.Run("series is chronological", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/api/v1/series", "", "")
		var points []types.ChartPoint
		gt.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points)).Required()
		gt.Array(t, points).Length(2).Required()
		gt.Value(t, points[0].Label).Equal("05 Jan")
	})

	t.Run("chart", func(t *testing.T) {
		rec := do(h, http.MethodGet, "/chart.png", "", "")
		gt.Value(t, rec.Code).Equal(http.StatusOK)
		gt.Value(t, rec.Header().Get("Content-Type")).Equal("image/png")
	})

	t.Run("delete", func(t *testing.T) {
		target := "/api/v1/measurements/" + strconv.FormatInt(created.ID, 10)
		gt.Value(t, do(h, http.MethodDelete, target, "", "").Code).Equal(http.StatusNoContent)
		gt.Value(t, do(h, http.MethodDelete, target, "", "").Code).Equal(http.StatusNotFound)
		gt.Value(t, do(h, http.MethodDelete, "/api/v1/measurements/abc", "", "").Code).Equal(http.StatusBadRequest)
	})
}

func TestChartWithoutData(t *testing.T) {
	_, h := newServer(t)
	gt.Value(t, do(h, http.MethodGet, "/chart.svg", "", "").Code).Equal(http.StatusNotFound)

	rec := do(h, http.MethodGet, "/", "", "")
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.String(t, rec.Body.String()).Contains("No measurements yet")
}

func TestHealth(t *testing.T) {
	_, h := newServer(t)
	rec := do(h, http.MethodGet, "/health", "", "")
	gt.Value(t, rec.Code).Equal(http.StatusOK)
	gt.String(t, rec.Body.String()).Contains("healthy")
}

func TestRejectedSubmissionLogRedactsNotes(t *testing.T) {
	var buf bytes.Buffer
	prev := logging.Default()
	t.Cleanup(func() { logging.SetDefault(prev) })
	logging.SetDefault(logging.New(&buf, logging.FormatJSON, slog.LevelInfo, false))

	_, h := newServer(t)
	form := url.Values{"date": {"2024-01-10"}, "level": {"lots"}, "notes": {"private remark"}}
	rec := do(h, http.MethodPost, "/measurements", form.Encode(), "application/x-www-form-urlencoded")
	gt.Value(t, rec.Code).Equal(http.StatusSeeOther)

	gt.String(t, buf.String()).Contains("form submission rejected")
	gt.String(t, buf.String()).Contains("lots")
	gt.Bool(t, strings.Contains(buf.String(), "private remark")).False()
}
