package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/udec-estadio/humidityboard/pkg/config"
	"github.com/udec-estadio/humidityboard/pkg/dashboard"
	"github.com/udec-estadio/humidityboard/pkg/models"
	"github.com/udec-estadio/humidityboard/pkg/views"
)

// memoryStore keeps readings in insertion order
type memoryStore struct {
	mu       sync.Mutex
	readings []models.Reading
	storeErr error
	listErr  error
	healthy  bool
	clock    time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		healthy: true,
		clock:   time.Date(2024, 9, 14, 15, 0, 0, 0, time.UTC),
	}
}

func (m *memoryStore) StoreReading(_ context.Context, value float64, location string) (models.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.storeErr != nil {
		return models.Reading{}, m.storeErr
	}

	m.clock = m.clock.Add(time.Second)
	r := models.Reading{
		ID:        int64(len(m.readings) + 1),
		Value:     value,
		Location:  location,
		Timestamp: m.clock,
	}
	m.readings = append(m.readings, r)
	return r, nil
}

func (m *memoryStore) GetLatestReadings(_ context.Context, limit int) ([]models.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}

	out := make([]models.Reading, len(m.readings))
	copy(out, m.readings)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) ListReadings(ctx context.Context) ([]models.Reading, error) {
	return m.GetLatestReadings(ctx, models.DefaultListLimit)
}

func (m *memoryStore) IsConnectionHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

type staticSnapshot struct {
	snap dashboard.Snapshot
}

func (s staticSnapshot) Snapshot() dashboard.Snapshot {
	return s.snap
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: "0", AllowedOrigins: []string{"http://localhost:5173"}},
		Dashboard: config.DashboardConfig{
			PollInterval: 15 * time.Second,
			HistorySize:  10,
			Locations:    dashboard.DefaultLocations,
		},
	}
}

func newTestRouteManager(t *testing.T, store readingStore, dash snapshotter) *RouteManager {
	t.Helper()

	if err := views.LoadTemplates(); err != nil {
		t.Fatalf("Failed to load templates: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rm := NewRouteManager(store, dash, testConfig(), logger)
	rm.Setup()
	return rm
}

func doRequest(rm *RouteManager, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	rm.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.APIError {
	t.Helper()
	var apiErr models.APIError
	if err := json.NewDecoder(rec.Body).Decode(&apiErr); err != nil {
		t.Fatalf("Failed to decode error body %q: %v", rec.Body.String(), err)
	}
	return apiErr
}

func TestRecordReadingHandler(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantStatus  int
		wantCode    models.ErrorCode
	}{
		{"valid", "application/json", `{"value": 42.5, "location": "centro"}`, http.StatusCreated, ""},
		{"valid with charset", "application/json; charset=utf-8", `{"value": 10, "location": "porteriaderecha"}`, http.StatusCreated, ""},
		{"numeric string", "application/json", `{"value": "55.5", "location": "centro"}`, http.StatusCreated, ""},
		{"legacy field name", "application/json", `{"humidity_value": 12, "location": "centro"}`, http.StatusCreated, ""},
		{"missing content type", "", `{"value": 1, "location": "centro"}`, http.StatusUnsupportedMediaType, models.ErrorCodeUnsupportedMediaType},
		{"form content type", "application/x-www-form-urlencoded", `value=1&location=centro`, http.StatusUnsupportedMediaType, models.ErrorCodeUnsupportedMediaType},
		{"malformed json", "application/json", `{"value": `, http.StatusBadRequest, models.ErrorCodeBadRequest},
		{"array body", "application/json", `[1, 2]`, http.StatusBadRequest, models.ErrorCodeBadRequest},
		{"trailing data", "application/json", `{"value": 42, "location": "centro"} {"oops": true} not-json`, http.StatusBadRequest, models.ErrorCodeBadRequest},
		{"missing value", "application/json", `{"location": "centro"}`, http.StatusBadRequest, models.ErrorCodeValidationFailed},
		{"non numeric value", "application/json", `{"value": "wet", "location": "centro"}`, http.StatusBadRequest, models.ErrorCodeValidationFailed},
		{"missing location", "application/json", `{"value": 30}`, http.StatusBadRequest, models.ErrorCodeValidationFailed},
		{"blank location", "application/json", `{"value": 30, "location": "   "}`, http.StatusBadRequest, models.ErrorCodeValidationFailed},
		{"distance field", "application/json", `{"distance": 30, "location": "centro"}`, http.StatusBadRequest, models.ErrorCodeValidationFailed},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemoryStore()
			rm := newTestRouteManager(t, store, staticSnapshot{})

			rec := doRequest(rm, http.MethodPost, "/api/v1/sensors", tc.contentType, tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("Expected status %d, got %d (body %s)", tc.wantStatus, rec.Code, rec.Body.String())
			}

			if tc.wantCode != "" {
				apiErr := decodeError(t, rec)
				if apiErr.Code != tc.wantCode {
					t.Errorf("Expected code %q, got %q", tc.wantCode, apiErr.Code)
				}
				if len(store.readings) != 0 {
					t.Errorf("Expected nothing stored, got %d readings", len(store.readings))
				}
				return
			}

			var reading models.Reading
			if err := json.NewDecoder(rec.Body).Decode(&reading); err != nil {
				t.Fatalf("Failed to decode reading: %v", err)
			}
			if reading.ID != 1 {
				t.Errorf("Expected id=1, got %d", reading.ID)
			}
			if reading.Location == "" || reading.Timestamp.IsZero() {
				t.Errorf("Expected stored row to be echoed, got %+v", reading)
			}
		})
	}
}

func TestRecordReadingHandler_BodyTooLarge(t *testing.T) {
	rm := newTestRouteManager(t, newMemoryStore(), staticSnapshot{})

	body := `{"value": 1, "location": "` + strings.Repeat("a", maxRecordBodyBytes) + `"}`
	rec := doRequest(rm, http.MethodPost, "/sensors", "application/json", body)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Message != "Request body too large" {
		t.Errorf("Expected body too large message, got %q", apiErr.Message)
	}
}

func TestRecordReadingHandler_StoreFailure(t *testing.T) {
	store := newMemoryStore()
	store.storeErr = errors.New(`pq: relation "readings" does not exist`)
	rm := newTestRouteManager(t, store, staticSnapshot{})

	rec := doRequest(rm, http.MethodPost, "/api/sensors", "application/json", `{"value": 20, "location": "centro"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}

	apiErr := decodeError(t, rec)
	if strings.Contains(apiErr.Message, "pq:") {
		t.Errorf("Expected driver error to stay out of the response, got %q", apiErr.Message)
	}
	if apiErr.Code != models.ErrorCodeInternalServerError {
		t.Errorf("Expected code %q, got %q", models.ErrorCodeInternalServerError, apiErr.Code)
	}
}

func TestListReadingsHandler(t *testing.T) {
	t.Run("empty store returns empty array", func(t *testing.T) {
		rm := newTestRouteManager(t, newMemoryStore(), staticSnapshot{})

		rec := doRequest(rm, http.MethodGet, "/api/v1/sensors", "", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", rec.Code)
		}
		if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
			t.Errorf("Expected [], got %s", body)
		}
	})

	t.Run("returns at most ten newest first", func(t *testing.T) {
		store := newMemoryStore()
		for i := 0; i < 12; i++ {
			if _, err := store.StoreReading(context.Background(), float64(i), "centro"); err != nil {
				t.Fatal(err)
			}
		}
		rm := newTestRouteManager(t, store, staticSnapshot{})

		rec := doRequest(rm, http.MethodGet, "/sensors", "", "")
		var readings []models.Reading
		if err := json.NewDecoder(rec.Body).Decode(&readings); err != nil {
			t.Fatalf("Failed to decode readings: %v", err)
		}
		if len(readings) != models.DefaultListLimit {
			t.Fatalf("Expected %d readings, got %d", models.DefaultListLimit, len(readings))
		}
		if readings[0].ID != 12 || readings[9].ID != 3 {
			t.Errorf("Expected ids 12..3, got first=%d last=%d", readings[0].ID, readings[9].ID)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		store := newMemoryStore()
		store.listErr = errors.New("connection reset")
		rm := newTestRouteManager(t, store, staticSnapshot{})

		rec := doRequest(rm, http.MethodGet, "/api/v1/sensors", "", "")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("Expected status 500, got %d", rec.Code)
		}
		if apiErr := decodeError(t, rec); apiErr.Message != "Failed to fetch readings" {
			t.Errorf("Expected generic message, got %q", apiErr.Message)
		}
	})
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		healthy    bool
		wantStatus int
		wantBody   string
	}{
		{"healthy", true, http.StatusOK, models.HealthStatusOK},
		{"degraded", false, http.StatusServiceUnavailable, models.HealthStatusDegraded},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemoryStore()
			store.healthy = tc.healthy
			rm := newTestRouteManager(t, store, staticSnapshot{})

			rec := doRequest(rm, http.MethodGet, "/health", "", "")
			if rec.Code != tc.wantStatus {
				t.Fatalf("Expected status %d, got %d", tc.wantStatus, rec.Code)
			}

			var health models.HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
				t.Fatalf("Failed to decode health: %v", err)
			}
			if health.Status != tc.wantBody || health.Database != tc.healthy {
				t.Errorf("Expected status=%s database=%v, got %+v", tc.wantBody, tc.healthy, health)
			}
		})
	}
}

func TestNotFoundHandler(t *testing.T) {
	rm := newTestRouteManager(t, newMemoryStore(), staticSnapshot{})

	rec := doRequest(rm, http.MethodGet, "/nope", "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Code != models.ErrorCodeNotFound {
		t.Errorf("Expected code %q, got %q", models.ErrorCodeNotFound, apiErr.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("Expected unmatched routes to carry a request id")
	}
}

func TestMethodNotAllowedHandler(t *testing.T) {
	rm := newTestRouteManager(t, newMemoryStore(), staticSnapshot{})

	rec := doRequest(rm, http.MethodDelete, "/api/v1/sensors", "", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected status 405, got %d", rec.Code)
	}
	if apiErr := decodeError(t, rec); apiErr.Code != models.ErrorCodeMethodNotAllowed {
		t.Errorf("Expected code %q, got %q", models.ErrorCodeMethodNotAllowed, apiErr.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("Expected method mismatches to carry a request id")
	}
}

func TestDashboardHandler(t *testing.T) {
	avg := 25.0
	snap := dashboard.Snapshot{
		Locations: []dashboard.LocationState{
			{Name: "centro", Latest: &models.Reading{ID: 1, Value: 25, Location: "centro", Timestamp: time.Now()}, History: []dashboard.Point{{Timestamp: time.Now(), Value: 25}}},
			{Name: "porteriaderecha"},
			{Name: "porteriaizquierda"},
		},
		Average:        &avg,
		Recommendation: dashboard.Recommend(&avg),
		UpdatedAt:      time.Now(),
	}
	rm := newTestRouteManager(t, newMemoryStore(), staticSnapshot{snap: snap})

	for _, path := range []string{"/", "/dashboard", "/dashboard/partial"} {
		t.Run(path, func(t *testing.T) {
			rec := doRequest(rm, http.MethodGet, path, "", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Expected text/html, got %q", ct)
			}

			body := rec.Body.String()
			for _, want := range []string{"25.0%", dashboard.RecommendationHybrid, "location-porteriaizquierda", "No readings yet."} {
				if !strings.Contains(body, want) {
					t.Errorf("Expected body to contain %q", want)
				}
			}
		})
	}
}

func TestReadingsPageHandler_FiltersByLocation(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()
	if _, err := store.StoreReading(ctx, 11, "centro"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.StoreReading(ctx, 22, "porteriaderecha"); err != nil {
		t.Fatal(err)
	}
	rm := newTestRouteManager(t, store, staticSnapshot{})

	rec := doRequest(rm, http.MethodGet, "/readings?location=centro", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "11.0%") {
		t.Error("Expected centro reading in page")
	}
	if strings.Contains(body, "22.0%") {
		t.Error("Expected porteriaderecha reading to be filtered out")
	}

	rec = doRequest(rm, http.MethodGet, "/readings?location=tribuna", "", "")
	if !strings.Contains(rec.Body.String(), "No readings for tribuna.") {
		t.Error("Expected empty message for unknown location")
	}
}

func TestRequestLogger_RequestID(t *testing.T) {
	rm := newTestRouteManager(t, newMemoryStore(), staticSnapshot{})

	rec := doRequest(rm, http.MethodGet, "/health", "", "")
	generated := rec.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatal("Expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "6f1c8f1e-0a3b-4b8e-9c1d-2f5a7e9b0c11")
	rec = httptest.NewRecorder()
	rm.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got != "6f1c8f1e-0a3b-4b8e-9c1d-2f5a7e9b0c11" {
		t.Errorf("Expected incoming request id to be kept, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	rm.Handler().ServeHTTP(rec, req)
	if got := rec.Header().Get(requestIDHeader); got == "not-a-uuid" || got == "" {
		t.Errorf("Expected invalid request id to be replaced, got %q", got)
	}
}

// Posting one reading per location and polling must place each reading
// under its own location on the dashboard.
func TestRecordThenDashboard(t *testing.T) {
	store := newMemoryStore()
	poller := dashboard.NewPoller(store, dashboard.Options{
		Locations: dashboard.DefaultLocations,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	rm := newTestRouteManager(t, store, poller)

	for _, body := range []string{
		`{"value": 20, "location": "centro"}`,
		`{"value": 40, "location": "porteriaderecha"}`,
	} {
		if rec := doRequest(rm, http.MethodPost, "/api/v1/sensors", "application/json", body); rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	snap, err := poller.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	centro, _ := snap.Location("centro")
	if centro.Latest == nil || centro.Latest.Value != 20 {
		t.Errorf("Expected centro=20, got %+v", centro.Latest)
	}
	derecha, _ := snap.Location("porteriaderecha")
	if derecha.Latest == nil || derecha.Latest.Value != 40 {
		t.Errorf("Expected porteriaderecha=40, got %+v", derecha.Latest)
	}
	izquierda, _ := snap.Location("porteriaizquierda")
	if izquierda.Latest != nil {
		t.Errorf("Expected porteriaizquierda to be empty, got %+v", izquierda.Latest)
	}
	if snap.Average == nil || *snap.Average != 30 {
		t.Errorf("Expected average=30, got %v", snap.Average)
	}

	rec := doRequest(rm, http.MethodGet, "/dashboard/partial", "", "")
	if !strings.Contains(rec.Body.String(), "30.0%") {
		t.Errorf("Expected partial to show the 30.0%% average")
	}
}

func TestDashboardPartial_HidesFetchErrorDetail(t *testing.T) {
	store := newMemoryStore()
	store.listErr = errors.New(`failed to query readings: pq: password authentication failed for user "estadio"`)
	poller := dashboard.NewPoller(store, dashboard.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	rm := newTestRouteManager(t, store, poller)

	if _, err := poller.Refresh(context.Background()); err == nil {
		t.Fatal("Expected refresh to fail")
	}

	rec := doRequest(rm, http.MethodGet, "/dashboard/partial", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	for _, leaked := range []string{"pq:", "password", "estadio", "failed to query"} {
		if strings.Contains(body, leaked) {
			t.Errorf("Expected %q to stay out of the page", leaked)
		}
	}
	if !strings.Contains(body, "data may be stale since") {
		t.Error("Expected a stale data note")
	}
}
