package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultListLimit is the number of rows returned by a List call.
const DefaultListLimit = 10

// Reading represents a single persisted humidity measurement
type Reading struct {
	ID        int64     `json:"id"`
	Value     float64   `json:"value"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// RecordRequest is the body accepted by the ingestion endpoint.
//
// Decoding coerces numeric strings ("42.5") for value and accepts the legacy
// humidity_value field name when value is absent.
type RecordRequest struct {
	Value    float64 `json:"value"`
	Location string  `json:"location"`
}

// UnmarshalJSON decodes a RecordRequest, reporting missing or mistyped fields
// as *ValidationError.
func (r *RecordRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	valueRaw := raw["value"]
	if isNull(valueRaw) {
		valueRaw = raw["humidity_value"]
	}
	if isNull(valueRaw) {
		return &ValidationError{Field: "value", Reason: "is required"}
	}
	value, err := coerceNumber(valueRaw)
	if err != nil {
		return &ValidationError{Field: "value", Reason: "must be numeric"}
	}

	locationRaw := raw["location"]
	if isNull(locationRaw) {
		return &ValidationError{Field: "location", Reason: "is required"}
	}
	var location string
	if err := json.Unmarshal(locationRaw, &location); err != nil {
		return &ValidationError{Field: "location", Reason: "must be a string"}
	}

	r.Value = value
	r.Location = strings.TrimSpace(location)
	return nil
}

// Validate checks the request invariants independently of how it was built
func (r RecordRequest) Validate() error {
	if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
		return &ValidationError{Field: "value", Reason: "must be a finite number"}
	}
	if strings.TrimSpace(r.Location) == "" {
		return &ValidationError{Field: "location", Reason: "must not be empty"}
	}
	return nil
}

var errTrailingData = errors.New("unexpected data after JSON object")

// DecodeRecordRequest reads a single JSON object from body and validates it.
// Syntax errors and non-object bodies are reported as ErrMalformedBody;
// field problems as *ValidationError.
func DecodeRecordRequest(body io.Reader) (RecordRequest, error) {
	dec := json.NewDecoder(body)

	var req RecordRequest
	if err := dec.Decode(&req); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return RecordRequest{}, verr
		}
		return RecordRequest{}, fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}

	// The body must hold exactly one JSON value
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errTrailingData
		}
		return RecordRequest{}, fmt.Errorf("%w: %w", ErrMalformedBody, err)
	}

	if err := req.Validate(); err != nil {
		return RecordRequest{}, err
	}

	return req, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func coerceNumber(raw json.RawMessage) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}

	switch t := v.(type) {
	case json.Number:
		return t.Float64()
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, errors.New("empty string")
		}
		return strconv.ParseFloat(s, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
