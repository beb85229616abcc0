package util

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// NormalizeMap returns a deep copy of data reduced to JSON-like values
// (objects, arrays, strings, float64 numbers, booleans and nulls), the same
// shape a context has after a round trip through any store.
func NormalizeMap(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	st, err := structpb.NewStruct(data)
	if err != nil {
		var decoded map[string]any
		if err := jsonRoundTrip(data, &decoded); err != nil {
			return nil, err
		}
		st, err = structpb.NewStruct(decoded)
		if err != nil {
			return nil, fmt.Errorf("value is not JSON-like: %w", err)
		}
	}
	return st.AsMap(), nil
}

// NormalizeValue is NormalizeMap for a single value of any shape.
func NormalizeValue(v any) (any, error) {
	val, err := structpb.NewValue(v)
	if err != nil {
		var decoded any
		if err := jsonRoundTrip(v, &decoded); err != nil {
			return nil, err
		}
		val, err = structpb.NewValue(decoded)
		if err != nil {
			return nil, fmt.Errorf("value is not JSON-like: %w", err)
		}
	}
	return val.AsInterface(), nil
}

func jsonRoundTrip(in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("value is not JSON-like: %w", err)
	}
	return json.Unmarshal(b, out)
}
