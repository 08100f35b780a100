package evaluator

import (
	"time"

	"github.com/querata/querata/pkg/types"
)

// iso8601Millis is the output format of $now and $fromMillis.
const iso8601Millis = "2006-01-02T15:04:05.000Z07:00"

// now returns the evaluation timestamp; $now and $millis observe the same
// instant for the whole run.
func (rt *Runtime) now() time.Time {
	if rt.timestamp.IsZero() {
		return time.Now()
	}
	return rt.timestamp
}

func fnNow(rt *Runtime, input any, args []any) (any, error) {
	return rt.now().UTC().Format(iso8601Millis), nil
}

func fnMillis(rt *Runtime, input any, args []any) (any, error) {
	return float64(rt.now().UnixMilli()), nil
}

func fnToMillis(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	s := args[0].(string)
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.UnixMilli()), nil
		}
	}
	return nil, types.Errorf(types.ErrCastNumber, -1,
		"unable to parse %q as an ISO 8601 timestamp", s).WithValue(s)
}

func fnFromMillis(rt *Runtime, input any, args []any) (any, error) {
	if args[0] == nil {
		return nil, nil
	}
	millis := int64(args[0].(float64))
	return time.UnixMilli(millis).UTC().Format(iso8601Millis), nil
}
