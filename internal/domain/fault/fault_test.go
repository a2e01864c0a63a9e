package fault

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_WrappedFault(t *testing.T) {
	inner := Wrap(KindUnavailable, "connect to api", io.ErrUnexpectedEOF)
	outer := fmt.Errorf("submit generation: %w", inner)

	assert.Equal(t, KindUnavailable, KindOf(outer))
	assert.True(t, IsKind(outer, KindUnavailable))
	assert.True(t, errors.Is(outer, io.ErrUnexpectedEOF))
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestTransient(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindUnavailable, true},
		{KindRateLimited, true},
		{KindAuthRejected, false},
		{KindMalformed, false},
		{KindRejected, false},
		{KindQuotaExceeded, false},
		{KindCircuitOpen, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, Transient(New(tt.kind, "x")))
		})
	}
}

func TestRetryAfterOf(t *testing.T) {
	f := New(KindRateLimited, "slow down")
	f.RetryAfter = 7 * time.Second

	assert.Equal(t, 7*time.Second, RetryAfterOf(fmt.Errorf("call: %w", f)))
	assert.Zero(t, RetryAfterOf(New(KindUnavailable, "down")))
	assert.Zero(t, RetryAfterOf(nil))
}

func TestDeliveredOf(t *testing.T) {
	notSent := New(KindUnavailable, "dial refused")
	require.False(t, DeliveredOf(notSent))

	sent := New(KindUnavailable, "response timeout")
	sent.Delivered = true
	assert.True(t, DeliveredOf(sent))

	// Anything outside the taxonomy is presumed delivered.
	assert.True(t, DeliveredOf(errors.New("mystery")))
}

func TestFault_ErrorString(t *testing.T) {
	withCause := Wrap(KindVaultCorrupt, "record truncated", io.EOF)
	assert.Equal(t, "vault_corrupt: record truncated: EOF", withCause.Error())

	bare := New(KindQuotaExceeded, "600 of 600 used")
	assert.Equal(t, "quota_exceeded: 600 of 600 used", bare.Error())
}
