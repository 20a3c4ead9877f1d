package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// ObservedValue holds a provider-reported observation, which may arrive as
// a JSON boolean, number, or string depending on the criterion kind.
// It keeps the typed form alongside a canonical string representation so
// the evaluator can dispatch on the criterion's kind tag instead of
// inspecting runtime types.
type ObservedValue struct {
	raw     string
	boolVal *bool
	numVal  *float64
}

// NewBoolValue builds an ObservedValue from a boolean observation.
func NewBoolValue(b bool) ObservedValue {
	return ObservedValue{raw: strconv.FormatBool(b), boolVal: &b}
}

// NewNumberValue builds an ObservedValue from a numeric observation.
func NewNumberValue(n float64) ObservedValue {
	return ObservedValue{raw: strconv.FormatFloat(n, 'f', -1, 64), numVal: &n}
}

// NewStringValue builds an ObservedValue from a textual observation.
func NewStringValue(s string) ObservedValue {
	return ObservedValue{raw: s}
}

// UnmarshalJSON accepts any JSON scalar. Non-scalar payloads fall back to
// their raw text so an odd provider response degrades instead of failing
// the whole parse.
func (v *ObservedValue) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = NewBoolValue(b)
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = NewNumberValue(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = NewStringValue(s)
		return nil
	}

	*v = ObservedValue{raw: strings.TrimSpace(string(data))}
	return nil
}

// MarshalJSON serializes the canonical string form.
func (v ObservedValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

// String returns the canonical string representation.
func (v ObservedValue) String() string { return v.raw }

// Bool returns the boolean form of the observation. String observations
// like "true" are parsed leniently since providers are inconsistent about
// scalar typing.
func (v ObservedValue) Bool() (bool, bool) {
	if v.boolVal != nil {
		return *v.boolVal, true
	}
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(v.raw)))
	if err != nil {
		return false, false
	}
	return b, true
}

// Number returns the numeric form of the observation, parsing string
// observations like "4" when necessary.
func (v ObservedValue) Number() (float64, bool) {
	if v.numVal != nil {
		return *v.numVal, true
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v.raw), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
