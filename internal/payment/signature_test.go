package payment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vasiliy-maslov/movie-checkout/internal/payment"
)

func TestVerifySignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"event_id":"evt_1","type":"success","external_ref":"cs_1"}`)

	signature := payment.Sign(secret, body)

	assert.True(t, payment.VerifySignature(secret, body, signature))
	assert.False(t, payment.VerifySignature(secret, body, "deadbeef"))
	assert.False(t, payment.VerifySignature(secret, []byte(`{"tampered":true}`), signature))
	assert.False(t, payment.VerifySignature("other_secret", body, signature))
	assert.False(t, payment.VerifySignature(secret, body, ""))
}
