package audit

import "encoding/json"

const redactedPlaceholder = "[REDACTED]"

var redactedFields = map[string]bool{
	"paciente_identificacion": true,
	"password":                true,
	"token":                   true,
}

// Snapshot serializes v for storage in an audit entry, masking fields that
// must never land in the trail. Nested objects and arrays are walked too.
func Snapshot(v interface{}) json.RawMessage {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return raw
	}
	redacted, err := json.Marshal(redactValue(decoded))
	if err != nil {
		return raw
	}
	return redacted
}

func redactValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, inner := range val {
			if redactedFields[k] {
				val[k] = redactedPlaceholder
				continue
			}
			val[k] = redactValue(inner)
		}
		return val
	case []interface{}:
		for i, inner := range val {
			val[i] = redactValue(inner)
		}
		return val
	default:
		return v
	}
}
