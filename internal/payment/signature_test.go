package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign(t *testing.T) {
	got := Sign("secret", "order_1", "pay_1")
	assert.Equal(t, "52115a0d3400de9e86aade1f1b6eba9e8974604f4e267a9e9a16633a4c8dd2cb", got)
	assert.Equal(t, got, Sign("secret", "order_1", "pay_1"), "signing is deterministic")
	assert.NotEqual(t, got, Sign("other", "order_1", "pay_1"))
	assert.NotEqual(t, got, Sign("secret", "order_1|pay", "_1x"))
}

func TestVerifySignature(t *testing.T) {
	sig := Sign("secret", "order_9", "pay_9")

	assert.True(t, VerifySignature("secret", "order_9", "pay_9", sig))
	assert.False(t, VerifySignature("secret", "order_9", "pay_8", sig))
	assert.False(t, VerifySignature("wrong", "order_9", "pay_9", sig))
	assert.False(t, VerifySignature("secret", "order_9", "pay_9", ""))
	assert.False(t, VerifySignature("secret", "order_9", "pay_9", sig[:63]))
}
