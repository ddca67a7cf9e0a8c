package chat

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const sessionSuffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// ResolveSessionID returns the supplied id verbatim when present, otherwise
// a freshly generated one. Caller-supplied ids are trusted as-is; they exist
// for log correlation, not authentication.
func ResolveSessionID(supplied string) string {
	if supplied != "" {
		return supplied
	}
	return GenerateSessionID()
}

// GenerateSessionID synthesizes an id of the form
// session_<epochMillis>_<9 base36 chars>. Collisions are possible but
// harmless; the id only groups log rows into a conversation.
func GenerateSessionID() string {
	suffix := make([]byte, 9)
	for i := range suffix {
		suffix[i] = sessionSuffixAlphabet[rand.IntN(len(sessionSuffixAlphabet))]
	}
	return fmt.Sprintf("session_%d_%s", time.Now().UnixMilli(), suffix)
}
