// Package codec converts record lists to and from the snapshot wire format.
//
// The wire format is a JSON array of objects. Every field is required,
// dates may be empty strings, and status must be one of the exact
// enumeration names.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iudanet/medsync/internal/models"
)

var (
	// ErrMalformedPayload indicates the payload is not a JSON array of objects
	ErrMalformedPayload = errors.New("malformed record list payload")

	// ErrMissingField indicates a required field is absent or null
	ErrMissingField = errors.New("missing required field")

	// ErrUnknownStatus indicates a status outside the closed enumeration
	ErrUnknownStatus = errors.New("unknown record status")

	// ErrDuplicateID indicates two records share an id
	ErrDuplicateID = errors.New("duplicate record id")
)

// requiredFields в порядке вывода на проводе
var requiredFields = []string{
	"id",
	"name",
	"dosage",
	"frequency",
	"scheduledTimes",
	"instructions",
	"startDate",
	"endDate",
	"status",
}

// wireRecord фиксирует порядок полей в JSON независимо от models.Record
type wireRecord struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Dosage         string   `json:"dosage"`
	Frequency      string   `json:"frequency"`
	ScheduledTimes []string `json:"scheduledTimes"`
	Instructions   string   `json:"instructions"`
	StartDate      string   `json:"startDate"`
	EndDate        string   `json:"endDate"`
	Status         string   `json:"status"`
}

// Encode serializes records. An empty or nil list encodes to "[]".
func Encode(records []models.Record) (string, error) {
	wire := make([]wireRecord, 0, len(records))
	for i := range records {
		r := &records[i]
		if !r.Status.Valid() {
			return "", fmt.Errorf("record %q: %w: %q", r.ID, ErrUnknownStatus, string(r.Status))
		}
		times := r.ScheduledTimes
		if times == nil {
			times = []string{}
		}
		wire = append(wire, wireRecord{
			ID:             r.ID,
			Name:           r.Name,
			Dosage:         r.Dosage,
			Frequency:      r.Frequency,
			ScheduledTimes: times,
			Instructions:   r.Instructions,
			StartDate:      r.StartDate,
			EndDate:        r.EndDate,
			Status:         string(r.Status),
		})
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("failed to marshal records: %w", err)
	}
	return string(data), nil
}

// Decode parses a payload produced by Encode. Any schema violation fails
// the whole payload; there is no partial result.
func Decode(payload string) ([]models.Record, error) {
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw == nil {
		// "null" не является списком
		return nil, fmt.Errorf("%w: expected array", ErrMalformedPayload)
	}

	records := make([]models.Record, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for i, obj := range raw {
		if obj == nil {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrMalformedPayload, i)
		}
		for _, field := range requiredFields {
			value, ok := obj[field]
			if !ok || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
				return nil, fmt.Errorf("record %d: %w: %s", i, ErrMissingField, field)
			}
		}

		var w wireRecord
		if err := decodeRecord(obj, &w); err != nil {
			return nil, fmt.Errorf("record %d: %w: %v", i, ErrMalformedPayload, err)
		}

		status, err := models.ParseStatus(w.Status)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w: %q", i, ErrUnknownStatus, w.Status)
		}

		if _, dup := seen[w.ID]; dup {
			return nil, fmt.Errorf("record %d: %w: %q", i, ErrDuplicateID, w.ID)
		}
		seen[w.ID] = struct{}{}

		records = append(records, models.Record{
			ID:             w.ID,
			Name:           w.Name,
			Dosage:         w.Dosage,
			Frequency:      w.Frequency,
			ScheduledTimes: w.ScheduledTimes,
			Instructions:   w.Instructions,
			StartDate:      w.StartDate,
			EndDate:        w.EndDate,
			Status:         status,
		})
	}

	return records, nil
}

func decodeRecord(obj map[string]json.RawMessage, w *wireRecord) error {
	// []*string отличает null элемент от пустой строки
	var times []*string
	fields := []struct {
		dst  any
		name string
	}{
		{&w.ID, "id"},
		{&w.Name, "name"},
		{&w.Dosage, "dosage"},
		{&w.Frequency, "frequency"},
		{&times, "scheduledTimes"},
		{&w.Instructions, "instructions"},
		{&w.StartDate, "startDate"},
		{&w.EndDate, "endDate"},
		{&w.Status, "status"},
	}
	for _, f := range fields {
		if err := json.Unmarshal(obj[f.name], f.dst); err != nil {
			return fmt.Errorf("field %s: %w", f.name, err)
		}
	}

	w.ScheduledTimes = make([]string, len(times))
	for i, v := range times {
		if v == nil {
			return fmt.Errorf("field scheduledTimes: element %d is null", i)
		}
		w.ScheduledTimes[i] = *v
	}
	return nil
}
