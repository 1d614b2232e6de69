package ai_client

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// parseDocument validates body as JSON and returns it for field access.
// Only the syntax is checked; the shape is never validated.
func parseDocument(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("%w (%d bytes): %q", ErrDecode, len(body), preview(body))
	}
	return gjson.ParseBytes(body), nil
}

// stringField returns the string at path, or def when it is missing or not a JSON string.
func stringField(doc gjson.Result, path, def string) string {
	r := doc.Get(path)
	if r.Type != gjson.String {
		return def
	}
	return r.Str
}

// floatField returns the number at path, or def when it is missing or not a JSON number.
func floatField(doc gjson.Result, path string, def float64) float64 {
	r := doc.Get(path)
	if r.Type != gjson.Number {
		return def
	}
	return r.Num
}

// boolField reports the boolean at path; ok is false unless it is a JSON true/false.
func boolField(doc gjson.Result, path string) (value, ok bool) {
	switch doc.Get(path).Type {
	case gjson.True:
		return true, true
	case gjson.False:
		return false, true
	default:
		return false, false
	}
}

func preview(body []byte) string {
	const limit = 50
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
