package adapter

// SignatureVerifier checks completion signatures issued by the gateway.
type SignatureVerifier interface {
	VerifyPayment(orderID, paymentID, signature string) bool
	VerifyWebhook(rawBody []byte, signature string) bool
}
