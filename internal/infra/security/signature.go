// File: internal/infra/security/signature.go
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// MockSignature is accepted for both contracts when the gateway runs in mock mode.
const MockSignature = "mock_signature"

// SignatureVerifier checks the two gateway signing contracts:
// client completion  hex(HMAC_SHA256(keySecret, orderId + "|" + paymentId))
// webhook delivery   hex(HMAC_SHA256(webhookSecret, rawBody))
type SignatureVerifier struct {
	keySecret     []byte
	webhookSecret []byte
	mock          bool
}

func NewSignatureVerifier(keySecret, webhookSecret string, mock bool) *SignatureVerifier {
	return &SignatureVerifier{
		keySecret:     []byte(keySecret),
		webhookSecret: []byte(webhookSecret),
		mock:          mock,
	}
}

func (v *SignatureVerifier) SignPayment(orderID, paymentID string) string {
	return sign(v.keySecret, []byte(orderID+"|"+paymentID))
}

func (v *SignatureVerifier) SignWebhook(rawBody []byte) string {
	return sign(v.webhookSecret, rawBody)
}

// VerifyPayment compares the client-submitted signature in constant time.
func (v *SignatureVerifier) VerifyPayment(orderID, paymentID, signature string) bool {
	if v.mock && signature == MockSignature {
		return true
	}
	if len(v.keySecret) == 0 {
		return false
	}
	return equal(v.SignPayment(orderID, paymentID), signature)
}

// VerifyWebhook compares the header signature against the untouched raw body.
func (v *SignatureVerifier) VerifyWebhook(rawBody []byte, signature string) bool {
	if v.mock && signature == MockSignature {
		return true
	}
	if len(v.webhookSecret) == 0 {
		return false
	}
	return equal(v.SignWebhook(rawBody), signature)
}

func sign(secret, msg []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(msg)
	return hex.EncodeToString(h.Sum(nil))
}

func equal(expected, got string) bool {
	return hmac.Equal([]byte(expected), []byte(got))
}
