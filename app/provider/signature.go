package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the lowercase hex HMAC-SHA256 of data keyed with secret.
func Sign(secret string, data []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks the signature handed to the browser by
// checkout, computed over "<order_id>|<payment_id>" with the API key secret.
func VerifyPaymentSignature(keySecret, orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" {
		return false
	}
	return verifyHex(keySecret, []byte(orderID+"|"+paymentID), signature)
}

// VerifyWebhookSignature checks a webhook signature computed over the exact
// request body bytes with the webhook secret.
func VerifyWebhookSignature(webhookSecret string, body []byte, signature string) bool {
	return verifyHex(webhookSecret, body, signature)
}

func verifyHex(secret string, data []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, data)
	return hmac.Equal([]byte(expected), []byte(signature))
}
