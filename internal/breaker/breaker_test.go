package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterFailureRatio(t *testing.T) {
	b := New(Settings{Name: "test", MinRequests: 4, FailureRatio: 0.5, Timeout: time.Hour})
	require.Equal(t, "closed", b.State())

	for i := 0; i < 4; i++ {
		require.ErrorIs(t, b.Run(func() error { return errBoom }), errBoom)
	}

	require.True(t, b.Open())
	require.Equal(t, "open", b.State())

	called := false
	err := b.Run(func() error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrOpen)
	require.False(t, called)
}

func TestBreakerIgnoresSuccessfulErrors(t *testing.T) {
	errNotRecipe := errors.New("not a recipe")
	b := New(Settings{
		Name:        "classified",
		MinRequests: 2,
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errNotRecipe)
		},
	})

	for i := 0; i < 5; i++ {
		require.ErrorIs(t, b.Run(func() error { return errNotRecipe }), errNotRecipe)
	}
	require.False(t, b.Open())
}

func TestExecuteReturnsTypedResult(t *testing.T) {
	b := New(Settings{Name: "typed"})

	value, err := Execute(b, func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", value)

	value, err = Execute(b, func() (string, error) { return "ignored", errBoom })
	require.ErrorIs(t, err, errBoom)
	require.Empty(t, value)
	require.Equal(t, "typed", b.Name())
}
