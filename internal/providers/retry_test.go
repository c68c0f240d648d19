package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return &ProviderError{Retryable: true, Message: "temporary"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestWithRetryStopsImmediatelyOnPermanentError(t *testing.T) {
	attempts := 0
	permanent := &ProviderError{Retryable: false, HTTPStatus: 400, Message: "bad request"}
	err := WithRetry(context.Background(), func() error {
		attempts++
		return permanent
	})
	require.Equal(t, 1, attempts)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	require.False(t, perr.Retryable)
}

func TestWithRetryDoesNotRetryNonProviderErrors(t *testing.T) {
	attempts := 0
	other := errors.New("unexpected")
	err := WithRetry(context.Background(), func() error {
		attempts++
		return other
	})
	require.Equal(t, 1, attempts)
	require.ErrorIs(t, err, other)
}

func TestClassifyHTTPErrorRetryability(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{429, true},
		{408, true},
		{500, true},
		{503, true},
		{400, false},
		{401, false},
		{404, false},
	}
	for _, c := range cases {
		perr := ClassifyHTTPError(c.status, nil)
		require.NotNil(t, perr)
		require.Equal(t, c.retryable, perr.Retryable, "status %d", c.status)
	}
}

func TestClassifyHTTPErrorNetworkFailureIsRetryable(t *testing.T) {
	perr := ClassifyHTTPError(0, errors.New("connection refused"))
	require.True(t, perr.Retryable)
}

func TestClassifyHTTPErrorSuccessIsNil(t *testing.T) {
	require.Nil(t, ClassifyHTTPError(200, nil))
}
