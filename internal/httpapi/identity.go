package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// synthesizePhone derives the placeholder phone spec.md §3 calls for when a
// customer is only known by email: "email:<hash>". It never collides with a
// real phone number and is deterministic so the same address always
// resolves to the same customer.
func synthesizePhone(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "email:" + hex.EncodeToString(sum[:])[:16]
}

// smsConversationID derives the deterministic conversation id EnsureConversation
// looks up by for an SMS channel.
func smsConversationID(phone string) string {
	return "sms:" + phone
}

// emailConversationID derives the deterministic conversation id for an
// email channel.
func emailConversationID(address string) string {
	return "email:" + strings.ToLower(strings.TrimSpace(address))
}
