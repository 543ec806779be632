package backend

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Named response fields. The first part is jims (or beam), the second tock (or cyan).
var (
	firstKeys  = []string{"jims", "beam"}
	secondKeys = []string{"tock", "cyan"}
)

// ExtractParts pulls the two URL fragments out of a backend response object.
// Named fields win; otherwise the first two non-empty string values are taken
// in document order. Backends that reorder keys change the result, so this
// path is only as stable as the backend's serializer.
func ExtractParts(body []byte) ([2]string, error) {
	var parts [2]string
	if !gjson.ValidBytes(body) {
		return parts, fmt.Errorf("%w: body is not JSON", ErrInvalidResponse)
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return parts, fmt.Errorf("%w: body is not a JSON object", ErrInvalidResponse)
	}

	a, b := named(root, firstKeys), named(root, secondKeys)
	if a != "" && b != "" {
		return [2]string{a, b}, nil
	}

	n := 0
	root.ForEach(func(_, v gjson.Result) bool {
		if v.Type != gjson.String {
			return true
		}
		s := strings.TrimSpace(v.String())
		if s == "" {
			return true
		}
		parts[n] = s
		n++
		return n < 2
	})
	if n < 2 {
		return parts, fmt.Errorf("%w: need 2 string parts, got %d", ErrInvalidResponse, n)
	}
	return parts, nil
}

// named returns the first non-empty trimmed string among keys.
func named(root gjson.Result, keys []string) string {
	for _, k := range keys {
		v := root.Get(gjson.Escape(k))
		if v.Type != gjson.String {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return ""
}

// Reconstruct joins the parts into the destination URL. A part starting with
// "." is a domain suffix and goes after the other part; when both or neither
// start with ".", extraction order is kept.
func Reconstruct(parts [2]string) (*url.URL, error) {
	first, second := parts[0], parts[1]
	aDot, bDot := strings.HasPrefix(first, "."), strings.HasPrefix(second, ".")
	if aDot && !bDot {
		first, second = second, first
	}

	joined := strings.TrimSuffix(strings.TrimSuffix(first, "/")+second, "/")
	if !strings.HasPrefix(joined, "http") {
		joined = "https://" + joined
	}

	u, err := url.Parse(joined)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidResponse, joined, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an absolute URL", ErrInvalidResponse, joined)
	}
	return u, nil
}
