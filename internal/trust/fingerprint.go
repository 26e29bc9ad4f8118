package trust

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/trustd/trustd/internal/model"
)

const unknownAttribute = "unknown"

// GenerateFingerprint derives a deterministic device fingerprint from
// client/network attributes: a SHA-256 hash over the pipe-joined ordered
// tuple. Absent attributes default to "unknown". The same attributes
// always yield the same fingerprint, which is both how returning devices
// are recognized and the natural key for registration.
func GenerateFingerprint(attrs model.FingerprintAttributes) string {
	fields := []string{
		orUnknown(attrs.UserAgent),
		orUnknown(attrs.IPAddress),
		orUnknown(attrs.ScreenResolution),
		orUnknown(attrs.Timezone),
		orUnknown(attrs.Language),
		orUnknown(attrs.Platform),
	}

	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

func orUnknown(v string) string {
	if v == "" {
		return unknownAttribute
	}
	return v
}
