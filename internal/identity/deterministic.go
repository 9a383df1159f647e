package identity

import (
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// UUID derives a deterministic UUID from a stable key using go-hashid.
//
// Callers must prefix keys by entity type so distinct entities never collide.
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

// PageUUID derives the identifier of a page from its kind, origin and
// identity key. Recreating a deleted page yields the same identifier.
func PageUUID(kind, origin, key string) uuid.UUID {
	return UUID("docsync:page:" + strings.ToLower(strings.TrimSpace(kind)) + ":" +
		strings.ToLower(strings.TrimSpace(origin)) + ":" + strings.TrimSpace(key))
}

// ScopedKey joins identity parts with a separator that cannot appear in slugs.
func ScopedKey(parts ...string) string {
	trimmed := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed = append(trimmed, strings.TrimSpace(part))
	}
	return strings.Join(trimmed, "|")
}
