package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
)

// Params is the surgical parameter subset for one WorkUnit: only the values
// that affect that unit's outcome, isolated by the caller before hashing.
// Values may be scalars, nested maps, or slices.
type Params map[string]any

// Fingerprint digests the canonical serialization of params. Identical
// parameter sets always produce identical fingerprints; any semantic change
// produces a different one. Map keys are sorted and every field is
// length-prefixed so no two distinct structures share an encoding.
func Fingerprint(params Params) (string, error) {
	h := sha256.New()
	writeField := func(data []byte) {
		length := uint64(len(data))
		h.Write([]byte{
			byte(length >> 56),
			byte(length >> 48),
			byte(length >> 40),
			byte(length >> 32),
			byte(length >> 24),
			byte(length >> 16),
			byte(length >> 8),
			byte(length),
		})
		h.Write(data)
	}
	if err := hashValue(writeField, map[string]any(params)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashValue(writeField func([]byte), value any) error {
	switch v := value.(type) {
	case nil:
		writeField([]byte("~"))
	case bool:
		writeField([]byte(strconv.FormatBool(v)))
	case string:
		writeField([]byte("s"))
		writeField([]byte(v))
	case int:
		writeField([]byte(strconv.FormatInt(int64(v), 10)))
	case int64:
		writeField([]byte(strconv.FormatInt(v, 10)))
	case uint64:
		writeField([]byte(strconv.FormatUint(v, 10)))
	case float64:
		writeField([]byte(strconv.FormatFloat(v, 'g', -1, 64)))
	case float32:
		writeField([]byte(strconv.FormatFloat(float64(v), 'g', -1, 32)))
	case []any:
		writeField([]byte("["))
		for _, item := range v {
			if err := hashValue(writeField, item); err != nil {
				return err
			}
		}
		writeField([]byte("]"))
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		writeField([]byte("{"))
		for _, k := range keys {
			writeField([]byte(k))
			if err := hashValue(writeField, v[k]); err != nil {
				return err
			}
		}
		writeField([]byte("}"))
	default:
		return fmt.Errorf("cache: unhashable parameter type %T", value)
	}
	return nil
}
