package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiterSeparatesHosts(t *testing.T) {
	hl := NewHostLimiter(1, 1)
	ctx := context.Background()

	require.NoError(t, hl.WaitURL(ctx, "https://a.example.com/x"))
	require.NoError(t, hl.WaitURL(ctx, "https://b.example.com/x"))

	// the second call to the same host has to wait for a token
	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.Error(t, hl.WaitURL(short, "https://a.example.com/y"))
}

func TestPerMinuteUnlimited(t *testing.T) {
	hl := PerMinute(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, hl.WaitURL(context.Background(), "https://api.example.com"))
	}
}
