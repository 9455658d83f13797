// Package params parses the loosely-typed skill-parameter maps the
// behavior-tree interpreter hands to decoders: JSON-sourced values
// (encoding/json unmarshals attrs into `any`) alongside native Go values
// set directly by an earlier skill's blackboard write (e.g. find's
// find_result is a live adapter.RecognitionResult, never re-serialized).
package params

import "tasqsym/adapter"
import "tasqsym/geometry"

// Float64Slice accepts []float64 or a JSON-decoded []any of numbers.
func Float64Slice(v any) ([]float64, bool) {
	switch t := v.(type) {
	case []float64:
		return t, true
	case []any:
		out := make([]float64, len(t))
		for i, e := range t {
			f, ok := asFloat(e)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	}
	return nil, false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	}
	return 0, false
}

// Point accepts a geometry.Point, a 3-element float slice, or an
// adapter.RecognitionResult (using its detected Position).
func Point(v any) (geometry.Point, bool) {
	switch t := v.(type) {
	case geometry.Point:
		return t, true
	case adapter.RecognitionResult:
		return t.Position, true
	}
	fs, ok := Float64Slice(v)
	if !ok || len(fs) != 3 {
		return geometry.Point{}, false
	}
	return geometry.Point{X: fs[0], Y: fs[1], Z: fs[2]}, true
}

// Quaternion accepts a geometry.Quaternion, a 4-element float slice
// (x, y, z, w order per spec.md §3's wire format), or an
// adapter.RecognitionResult (using its detected Orientation).
func Quaternion(v any) (geometry.Quaternion, bool) {
	switch t := v.(type) {
	case geometry.Quaternion:
		return t, true
	case adapter.RecognitionResult:
		return t.Orientation, true
	}
	fs, ok := Float64Slice(v)
	if !ok || len(fs) != 4 {
		return geometry.Quaternion{}, false
	}
	return geometry.Quaternion{X: fs[0], Y: fs[1], Z: fs[2], W: fs[3]}, true
}

// String reads a string-typed param.
func String(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// StringOr returns params[key] as a string, or def if absent/wrong type.
func StringOr(m map[string]any, key, def string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// IntOr returns params[key] as an int (accepting a JSON float64), or def
// if absent/wrong type — used for the `num_*_segments` skill configs.
func IntOr(m map[string]any, key string, def int) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		}
	}
	return def
}

// FloatOr returns params[key] as a float64 (accepting an int), or def if
// absent/wrong type — used for skill-level tunables like navigation's
// timeout and stay tolerances.
func FloatOr(m map[string]any, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
	}
	return def
}

// Overlay shallow-copies base then sets every key in overrides, used by
// decoders to build AsConfig() output that still carries through any
// skill-level configs (e.g. num_approach_segments) present in base
// alongside the decoder's own computed fields.
func Overlay(base, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(overrides))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}
