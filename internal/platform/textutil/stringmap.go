package textutil

import (
	"fmt"
	"strings"
	"time"
)

// StringifyMap converts a payload into the string-only map accepted by push providers. Keys
// are trimmed, empty keys and nil values are dropped, times are formatted as RFC 3339.
func StringifyMap(values map[string]any) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" || value == nil {
			continue
		}
		switch v := value.(type) {
		case string:
			result[key] = strings.TrimSpace(v)
		case *string:
			if v != nil {
				result[key] = strings.TrimSpace(*v)
			}
		case time.Time:
			result[key] = v.UTC().Format(time.RFC3339)
		case fmt.Stringer:
			result[key] = v.String()
		default:
			result[key] = fmt.Sprint(v)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
