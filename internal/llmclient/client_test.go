package llmclient

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string   { return "timeout" }
func (fakeTimeoutErr) Timeout() bool   { return true }
func (fakeTimeoutErr) Temporary() bool { return true }

var _ net.Error = fakeTimeoutErr{}

func TestIsRetryableNilError(t *testing.T) {
	assert.False(t, isRetryable(nil))
}

func TestIsRetryableContextCancellation(t *testing.T) {
	assert.False(t, isRetryable(context.Canceled))
	assert.False(t, isRetryable(context.DeadlineExceeded))
}

func TestIsRetryableNetworkTimeout(t *testing.T) {
	assert.True(t, isRetryable(fakeTimeoutErr{}))
}

func TestIsRetryableUnrecognizedErrorDefaultsTrue(t *testing.T) {
	assert.True(t, isRetryable(errors.New("something unexpected")))
}

func TestRequestCounterIsSharedAcrossClients(t *testing.T) {
	before := requestCounter.Load()
	requestCounter.Add(1)
	requestCounter.Add(1)
	after := requestCounter.Load()
	assert.Equal(t, before+2, after)
}
