package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldError represents a single field's validation error.
type FieldError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e FieldError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }

// fieldRecord is used when a failure is not tied to one field.
const fieldRecord = "record"

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names so FieldError matches the input keys
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeRawEvent decodes a single JSON object. Type mismatches are reported
// as field errors rather than returned as a decode failure.
func DecodeRawEvent(data []byte) (RawEvent, []FieldError) {
	var raw RawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return raw, []FieldError{{te.Field, fmt.Sprintf("wrong type: expected %s, got %s", te.Type, te.Value)}}
		}
		return raw, []FieldError{{fieldRecord, "not a JSON object"}}
	}
	return raw, nil
}

// ValidateEvent checks raw against the event schema and converts it.
// The returned Event is only meaningful when no errors are returned.
func ValidateEvent(raw *RawEvent) (Event, []FieldError) {
	var errs []FieldError

	if err := validate.Struct(raw); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return Event{}, []FieldError{{fieldRecord, err.Error()}}
		}
		for _, fe := range ves {
			errs = append(errs, FieldError{fe.Field(), tagMessage(fe)})
		}
	}

	var ts time.Time
	if raw.Timestamp != nil && *raw.Timestamp != "" {
		t, err := ParseTimestamp(*raw.Timestamp)
		switch {
		case err != nil:
			errs = append(errs, FieldError{"timestamp", "not an ISO-8601 timestamp"})
		case t.Before(MinTimestamp) || t.After(MaxTimestamp):
			errs = append(errs, FieldError{"timestamp", "outside supported range 1677-09-21 to 2262-04-11"})
		}
		ts = t
	}

	if len(errs) > 0 {
		return Event{}, errs
	}
	return Event{
		UserID:    *raw.UserID,
		Timestamp: ts,
		Action:    Action(*raw.Action),
		Category:  *raw.Category,
		Amount:    *raw.Amount,
		SessionID: *raw.SessionID,
	}, nil
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "min":
		return "must not be empty"
	case "max":
		return fmt.Sprintf("max length %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be >= %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed on %q", fe.Tag())
	}
}

// MinTimestamp and MaxTimestamp bound the instants representable as int64
// nanoseconds since the Unix epoch.
var (
	MinTimestamp = time.Unix(0, math.MinInt64).UTC()
	MaxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// timestampLayouts are tried in order. Layouts without an offset are
// interpreted as UTC wall-clock time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses the ISO-8601 forms seen in event logs.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse timestamp %q: unsupported format", s)
}

// Rejection records why one input record was dropped.
type Rejection struct {
	Index  int          `json:"index"`
	UserID string       `json:"user_id,omitempty"`
	Errors []FieldError `json:"errors"`
}

// Validator checks records one at a time and keeps pass/fail accounting.
// Bad records are counted and skipped, never fatal.
type Validator struct {
	passed     int
	rejections []Rejection
	byField    map[string]int
}

func NewValidator() *Validator {
	return &Validator{byField: make(map[string]int)}
}

// Check decodes and validates the record at position index.
func (v *Validator) Check(index int, data []byte) (Event, bool) {
	raw, errs := DecodeRawEvent(data)
	var ev Event
	if len(errs) == 0 {
		ev, errs = ValidateEvent(&raw)
	}
	if len(errs) > 0 {
		rej := Rejection{Index: index, Errors: errs}
		if raw.UserID != nil {
			rej.UserID = *raw.UserID
		}
		v.rejections = append(v.rejections, rej)
		for _, fe := range errs {
			v.byField[fe.Field]++
		}
		return Event{}, false
	}
	v.passed++
	return ev, true
}

// ValidateAll runs Check over every record and returns the survivors in input order.
func (v *Validator) ValidateAll(records []json.RawMessage) []Event {
	out := make([]Event, 0, len(records))
	for i, rec := range records {
		if ev, ok := v.Check(i, rec); ok {
			out = append(out, ev)
		}
	}
	return out
}

func (v *Validator) Passed() int { return v.passed }

func (v *Validator) Failed() int { return len(v.rejections) }

// Rejections returns the accumulated failures in input order.
func (v *Validator) Rejections() []Rejection { return v.rejections }

// FailuresByField counts field errors across all rejected records.
func (v *Validator) FailuresByField() map[string]int {
	out := make(map[string]int, len(v.byField))
	for k, n := range v.byField {
		out[k] = n
	}
	return out
}
