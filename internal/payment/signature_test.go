package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signFor(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerify_ValidSignature(t *testing.T) {
	v := NewSignatureVerifier("test_secret")
	sig := signFor("test_secret", "order_abc", "pay_123")

	assert.True(t, v.Verify("order_abc", "pay_123", sig))
}

func TestVerify_RejectsTamperedPaymentID(t *testing.T) {
	v := NewSignatureVerifier("test_secret")
	sig := signFor("test_secret", "order_abc", "pay_123")

	assert.False(t, v.Verify("order_abc", "pay_999", sig))
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	v := NewSignatureVerifier("test_secret")
	sig := signFor("other_secret", "order_abc", "pay_123")

	assert.False(t, v.Verify("order_abc", "pay_123", sig))
}

func TestVerify_RejectsEmptySignature(t *testing.T) {
	v := NewSignatureVerifier("test_secret")

	assert.False(t, v.Verify("order_abc", "pay_123", ""))
}
