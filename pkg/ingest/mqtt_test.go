package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/udec-estadio/humidityboard/pkg/config"
	"github.com/udec-estadio/humidityboard/pkg/models"
)

type fakeRecorder struct {
	mu      sync.Mutex
	stored  []models.Reading
	failErr error
}

func (f *fakeRecorder) StoreReading(_ context.Context, value float64, location string) (models.Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failErr != nil {
		return models.Reading{}, f.failErr
	}
	r := models.Reading{ID: int64(len(f.stored) + 1), Value: value, Location: location, Timestamp: time.Now().UTC()}
	f.stored = append(f.stored, r)
	return r, nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

func newTestSubscriber(rec Recorder) *Subscriber {
	cfg := config.MQTTConfig{Broker: "localhost", Port: 1883, Topic: "stadium/humidity", ClientID: "test"}
	return NewSubscriber(cfg, rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestProcess(t *testing.T) {
	testCases := []struct {
		name      string
		payload   string
		wantStore bool
		wantValue float64
		wantLoc   string
	}{
		{name: "Valid payload", payload: `{"value": 63.5, "location": "centro"}`, wantStore: true, wantValue: 63.5, wantLoc: "centro"},
		{name: "String value", payload: `{"value": "18", "location": " porteriaderecha "}`, wantStore: true, wantValue: 18, wantLoc: "porteriaderecha"},
		{name: "Legacy field", payload: `{"humidity_value": 7, "location": "porteriaizquierda"}`, wantStore: true, wantValue: 7, wantLoc: "porteriaizquierda"},
		{name: "Missing location", payload: `{"value": 10}`},
		{name: "Non-numeric value", payload: `{"value": "wet", "location": "centro"}`},
		{name: "Not JSON", payload: `humidity=10`},
		{name: "Trailing data", payload: `{"value": 10, "location": "centro"}{"value": 99, "location": "centro"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &fakeRecorder{}
			s := newTestSubscriber(rec)

			reading, err := s.process(context.Background(), []byte(tc.payload))

			if !tc.wantStore {
				if err == nil {
					t.Fatal("Expected error for invalid payload")
				}
				if rec.count() != 0 {
					t.Errorf("Expected nothing stored, got %d", rec.count())
				}
				return
			}

			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if reading.Value != tc.wantValue {
				t.Errorf("Expected value=%f, got %f", tc.wantValue, reading.Value)
			}
			if reading.Location != tc.wantLoc {
				t.Errorf("Expected location=%q, got %q", tc.wantLoc, reading.Location)
			}
		})
	}
}

func TestProcess_StoreError(t *testing.T) {
	storeErr := errors.New("database connection is not healthy")
	s := newTestSubscriber(&fakeRecorder{failErr: storeErr})

	_, err := s.process(context.Background(), []byte(`{"value": 20, "location": "centro"}`))
	if !errors.Is(err, storeErr) {
		t.Errorf("Expected wrapped store error, got %v", err)
	}
}

func TestHandleMessage_StoresValidPayload(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestSubscriber(rec)

	s.handleMessage("stadium/humidity", []byte(`{"value": 20, "location": "centro"}`))
	s.handleMessage("stadium/humidity", []byte(`{"value": null, "location": "centro"}`))

	if rec.count() != 1 {
		t.Errorf("Expected 1 stored reading, got %d", rec.count())
	}
}

func TestDisconnect_Idempotent(t *testing.T) {
	s := newTestSubscriber(&fakeRecorder{})

	s.Disconnect()
	s.Disconnect()

	if s.IsConnected() {
		t.Error("Expected subscriber to be disconnected")
	}

	if err := s.Connect(context.Background()); !errors.Is(err, ErrSubscriberStopped) {
		t.Errorf("Expected ErrSubscriberStopped after Disconnect, got %v", err)
	}
}
