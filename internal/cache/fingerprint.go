package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint derives a stable cache key from a logical operation name and
// its parameter set. Parameters are serialized in sorted key order, so two
// semantically identical calls produce the same fingerprint regardless of
// map iteration order.
func Fingerprint(operation string, params map[string]interface{}) string {
	var b strings.Builder
	b.WriteString(operation)
	b.WriteByte('|')

	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			fmt.Fprintf(&b, "%s=%v;", k, params[k])
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
