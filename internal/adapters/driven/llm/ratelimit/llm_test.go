package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-synth/internal/core/ports/driven"
)

type countingLLM struct {
	calls  int
	closed bool
}

func (c *countingLLM) Generate(context.Context, string, driven.GenerateOptions) (string, error) {
	c.calls++
	return "ok", nil
}

func (c *countingLLM) GenerateStream(_ context.Context, _ string, _ driven.GenerateOptions, fn func(string) error) error {
	c.calls++
	return fn("ok")
}

func (c *countingLLM) ModelName() string          { return "counting" }
func (c *countingLLM) Ping(context.Context) error { return nil }
func (c *countingLLM) Close() error               { c.closed = true; return nil }

func TestWrap_Disabled(t *testing.T) {
	inner := &countingLLM{}
	assert.Same(t, inner, Wrap(inner, 0).(*countingLLM))
	assert.Nil(t, Wrap(nil, 5))
}

func TestWrap_Delegates(t *testing.T) {
	inner := &countingLLM{}
	svc := Wrap(inner, 100)

	out, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	var got string
	require.NoError(t, svc.GenerateStream(context.Background(), "p", driven.GenerateOptions{}, func(f string) error {
		got += f
		return nil
	}))
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "counting", svc.ModelName())

	require.NoError(t, svc.Close())
	assert.True(t, inner.closed)
}

func TestWrap_ThrottlesPastBurst(t *testing.T) {
	inner := &countingLLM{}
	// One request per second with a burst of one.
	svc := Wrap(inner, 1)

	_, err := svc.Generate(context.Background(), "p", driven.GenerateOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = svc.Generate(ctx, "p", driven.GenerateOptions{})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
