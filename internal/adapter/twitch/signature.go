package twitch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const signaturePrefix = "sha256="

// VerifySignature checks an EventSub signature header against
// "sha256=" + hex(HMAC-SHA256(secret, messageID || timestamp || body)).
// body must be the exact bytes received. Missing secret or signature fails closed.
func VerifySignature(secret, messageID, timestamp string, body []byte, provided string) bool {
	if secret == "" || provided == "" {
		return false
	}
	return hmac.Equal([]byte(provided), []byte(computeSignature(secret, messageID, timestamp, body)))
}

func computeSignature(secret, messageID, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(messageID))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
