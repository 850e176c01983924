package panel

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// MissingFieldError names the first required field absent from a request.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "Missing required field: " + e.Field
}

// InvalidInputError reports a value that cannot be used as a measurement.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Decode reads a request body into a JSON object. Numbers are kept as
// json.Number so coercion sees the literal the client sent.
func Decode(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &InvalidInputError{Reason: "request body is not valid JSON"}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &InvalidInputError{Reason: "request body has data after the JSON object"}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &InvalidInputError{Reason: "request body must be a JSON object"}
	}
	return obj, nil
}

// Validate checks presence only. Types are left to Coerce.
func Validate(obj map[string]any) error {
	for _, f := range fields {
		if _, ok := obj[f]; !ok {
			return &MissingFieldError{Field: f}
		}
	}
	return nil
}

func Coerce(obj map[string]any) (Measurements, error) {
	values := make([]float64, NumFields)
	for i, f := range fields {
		v, err := toFloat(obj[f])
		if err != nil {
			return Measurements{}, &InvalidInputError{Field: f, Reason: err.Error()}
		}
		values[i] = v
	}
	return FromVector(values)
}

// Parse runs Decode, Validate and Coerce in order.
func Parse(body []byte) (Measurements, error) {
	obj, err := Decode(body)
	if err != nil {
		return Measurements{}, err
	}
	if err := Validate(obj); err != nil {
		return Measurements{}, err
	}
	return Coerce(obj)
}

func toFloat(v any) (float64, error) {
	var f float64
	switch val := v.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(val.String(), 64)
		if err != nil {
			return 0, fmt.Errorf("could not convert %s to float", val.String())
		}
		f = parsed
	case float64:
		f = val
	case int:
		f = float64(val)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, fmt.Errorf("could not convert string to float: '%s'", val)
		}
		f = parsed
	case bool:
		if val {
			f = 1
		}
	case nil:
		return 0, fmt.Errorf("value must be a number, not null")
	default:
		return 0, fmt.Errorf("value must be a number or numeric string")
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value must be a finite number")
	}
	return f, nil
}
