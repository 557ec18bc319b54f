// Package normalize turns loosely-shaped Graph API payloads into the
// canonical page/post model. Every function here is pure: same bytes in,
// same values out, and malformed input degrades to empty results instead of
// errors.
package normalize

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// entries returns the record array of a payload: the first of keys holding a
// JSON array, else the root itself when it is an array.
func entries(raw []byte, keys ...string) []gjson.Result {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	root := gjson.ParseBytes(raw)
	for _, k := range keys {
		if v := root.Get(k); v.IsArray() {
			return v.Array()
		}
	}
	if root.IsArray() {
		return root.Array()
	}
	return nil
}

// truthy reports whether v would pass a JavaScript `||` check: missing, null,
// false, 0 and "" are falsy; objects and arrays are always truthy.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.String:
		return v.Str != ""
	case gjson.Number:
		return v.Num != 0
	case gjson.True, gjson.JSON:
		return true
	default:
		return false
	}
}

// firstTruthy walks paths in order and stops at the first truthy value.
func firstTruthy(obj gjson.Result, paths ...string) (gjson.Result, bool) {
	for _, p := range paths {
		if v := obj.Get(p); truthy(v) {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// text coerces a value to a string. Integers keep their literal form, nested
// objects/arrays come back as raw JSON.
func text(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.JSON:
		return v.Raw
	case gjson.Null:
		return ""
	default:
		return v.String()
	}
}

// defined reports presence in the `??` sense: not missing and not null.
func defined(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}

// numeric coerces a scalar the way Number() does. Objects and arrays are not
// coercible; the empty string counts as 0.
func numeric(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.True:
		return 1, true
	case gjson.False:
		return 0, true
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// firstCount resolves a counter through an ordered fallback chain.
func firstCount(obj gjson.Result, paths ...string) int64 {
	for _, p := range paths {
		v := obj.Get(p)
		if !defined(v) {
			continue
		}
		if f, ok := numeric(v); ok {
			return toCount(f)
		}
	}
	return 0
}

// toCount clamps a float to a non-negative integer counter.
func toCount(f float64) int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Trunc(f))
}
