package tool

import (
	"encoding/json"
	"fmt"
)

// FormatResult renders a tool result as the string recorded in events and
// shown to the model.
func FormatResult(v any) string {
	switch r := v.(type) {
	case nil:
		return ""
	case string:
		return r
	case []byte:
		return string(r)
	case error:
		return r.Error()
	case fmt.Stringer:
		return r.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
