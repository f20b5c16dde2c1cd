// Package markup prepares component renders for the wire: it assigns
// selector tokens to reactive elements, marks the component boundary, and
// provides the parsing helpers shared with the differ.
package markup

import (
	"fmt"
	"strconv"
)

const (
	// SelectorAttr carries the positional selector token on reactive
	// elements.
	SelectorAttr = "data-verve-sel"

	// BoundaryAttr carries the full component id on the root element.
	BoundaryAttr = "data-verve-id"
)

// Event binding attributes. An element carrying any of these, or a class
// attribute, is reactive and receives a selector token.
var bindingAttrs = []string{"v-click", "v-input", "v-change", "v-submit"}

const (
	shortHashLen = 8
	shortHashMod = 36 * 36 * 36 * 36 * 36 * 36 * 36 * 36
)

// ShortHash derives the 8-character base-36 component identifier used in
// selector tokens and patch batches. The hash is order dependent, so ids
// differing only in character order map to different hashes.
func ShortHash(componentID string) string {
	var h uint64
	for i := 0; i < len(componentID); i++ {
		h = h*31 + uint64(componentID[i])
	}
	s := strconv.FormatUint(h%shortHashMod, 36)
	for len(s) < shortHashLen {
		s = "0" + s
	}
	return s
}

// Token builds the selector token for the nth reactive element of a
// component's render, counted in document order from zero.
func Token(componentID string, n int) string {
	return ShortHash(componentID) + "." + strconv.FormatInt(int64(n), 36)
}

// SelectorFor returns the CSS selector addressing a token.
func SelectorFor(token string) string {
	return fmt.Sprintf(`[%s=%q]`, SelectorAttr, token)
}

// Text renders a value for interpolation into markup. Numeric zero renders
// as "0", never as the empty string; nil renders empty.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
