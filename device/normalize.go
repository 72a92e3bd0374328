package device

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/edequartel/BrailleServer/errors"
)

// Normalize parses a raw inbound payload into exactly one Event. This is the
// only place that reasons about wire shape: field names appear in two casing
// conventions depending on bridge firmware, and both are accepted. A parse
// failure is a protocol event, never an error return, so a malformed message
// cannot disturb the channel.
func Normalize(raw []byte) Event {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ErrorEvent{
			Type: "parse",
			Err:  errors.WrapProtocol(err, "Client", "Normalize", "unmarshal message"),
		}
	}

	kind := strings.ToLower(stringField(fields, "type"))

	// echo records pass through verbatim before generic classification
	if kind == string(KindBrailleEcho) {
		return BrailleEchoEvent{
			SourceText:  stringField(fields, "text"),
			BrailleText: stringField(fields, "braille"),
		}
	}

	pressed := pressedField(fields)

	switch kind {
	case string(KindCursor):
		index, ok := intField(fields, "cursor")
		if !ok {
			index, ok = intField(fields, "index")
		}
		if !ok {
			// a cursor message without a numeric index is a peer protocol
			// violation, reported rather than silently dropped
			return ErrorEvent{
				Type: "cursor",
				Err: errors.WrapProtocol(errors.ErrMissingIndex,
					"Client", "Normalize", "cursor message"),
			}
		}
		return CursorEvent{Index: index, Pressed: pressed}

	case string(KindThumbKey):
		name := strings.ToLower(stringField(fields, "name"))
		if name == "" {
			return ErrorEvent{
				Type: "parse",
				Err: errors.WrapProtocol(
					fmt.Errorf("thumbkey message without a name"),
					"Client", "Normalize", "thumbkey message"),
			}
		}
		return ThumbKeyEvent{Name: name, Pressed: pressed}

	default:
		return UnknownEvent{Raw: json.RawMessage(raw)}
	}
}

// field looks a name up under both wire casings: all-lowercase and
// initial-uppercase.
func field(fields map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if v, ok := fields[name]; ok {
		return v, true
	}
	upper := strings.ToUpper(name[:1]) + name[1:]
	v, ok := fields[upper]
	return v, ok
}

func stringField(fields map[string]json.RawMessage, name string) string {
	raw, ok := field(fields, name)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func intField(fields map[string]json.RawMessage, name string) (int, bool) {
	raw, ok := field(fields, name)
	if !ok {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// pressedField defaults to true unless the flag is explicitly false
func pressedField(fields map[string]json.RawMessage) bool {
	raw, ok := field(fields, "pressed")
	if !ok {
		return true
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return true
	}
	return b
}
