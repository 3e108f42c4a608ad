// Package toolcall derives canonical signatures for tool invocations.
//
// A signature combines the tool name with a deterministic serialization of
// its arguments. Two calls with the same tool and semantically equal
// arguments always produce the same signature, regardless of map key
// insertion order or how the arguments were originally decoded. Signatures
// key both the result cache and the failure-loop breaker.
package toolcall

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Canonical serializes args deterministically: object keys sorted, arrays
// mapped element-wise, nested structures normalized recursively. Values that
// arrived as json.RawMessage or structs are round-tripped through JSON so
// their internal key order cannot leak into the output.
func Canonical(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	var b strings.Builder
	writeValue(&b, args)
	return b.String()
}

// Signature returns the lookup key for a (tool, args) pair. The argument
// serialization is hashed so keys stay bounded even for large file writes.
func Signature(tool string, args map[string]any) string {
	sum := sha256.Sum256([]byte(Canonical(args)))
	return tool + ":" + hex.EncodeToString(sum[:])[:16]
}

func writeValue(b *strings.Builder, v any) {
	switch val := normalize(v).(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			writeString(b, k)
			b.WriteByte(':')
			writeValue(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeValue(b, item)
		}
		b.WriteByte(']')
	case nil:
		b.WriteString("null")
	case string:
		writeString(b, val)
	case bool:
		fmt.Fprintf(b, "%t", val)
	case float64:
		// Match encoding/json number formatting so 1 and 1.0 collide.
		data, _ := json.Marshal(val)
		b.Write(data)
	default:
		data, _ := json.Marshal(val)
		b.Write(data)
	}
}

// normalize converts structs, typed slices/maps, and raw JSON into the
// generic any-tree that writeValue understands.
func normalize(v any) any {
	switch v.(type) {
	case nil, string, bool, float64, map[string]any, []any:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return string(data)
	}
	return out
}

func writeString(b *strings.Builder, s string) {
	data, _ := json.Marshal(s)
	b.Write(data)
}
