package recorder

import (
	"fmt"

	"github.com/arfandy/toolbridge/internal/logger"
)

// DefaultMaxEventBytes caps the serialized size of recorded argument and
// result values when no explicit cap is configured.
const DefaultMaxEventBytes = 4096

var redactor = logger.NewRedactor()

// Sanitize returns a copy of the event with string values redacted and
// truncated so a single event stays within maxBytes per field group.
func Sanitize(ev Event, maxBytes int) Event {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxEventBytes
	}

	out := ev
	out.Result = clip(redactor.Redact(ev.Result), maxBytes)

	if len(ev.Args) > 0 {
		perValue := maxBytes / len(ev.Args)
		if perValue < 64 {
			perValue = 64
		}
		args := make(map[string]interface{}, len(ev.Args))
		for k, v := range ev.Args {
			switch tv := v.(type) {
			case string:
				args[k] = clip(redactor.Redact(tv), perValue)
			case bool, float64, float32, int, int64, nil:
				args[k] = tv
			default:
				args[k] = clip(redactor.Redact(fmt.Sprintf("%v", tv)), perValue)
			}
		}
		out.Args = args
	}
	return out
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... [truncated]"
}
