package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignatureVerifier checks Razorpay checkout callback signatures:
// HMAC-SHA256 of "<order_id>|<payment_id>" keyed with the key secret,
// hex-encoded.
type SignatureVerifier struct {
	secret []byte
}

// NewSignatureVerifier creates a verifier for the given key secret.
func NewSignatureVerifier(keySecret string) *SignatureVerifier {
	return &SignatureVerifier{secret: []byte(keySecret)}
}

// Verify reports whether signature matches orderID and paymentID.
func (v *SignatureVerifier) Verify(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
