package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	s, closeFn, err := Open(context.Background(), Config{Kind: Memory})
	require.NoError(t, err)
	defer closeFn()

	assert.NoError(t, s.Ping(context.Background()))
}

func TestOpen_Unknown(t *testing.T) {
	_, _, err := Open(context.Background(), Config{Kind: "sqlite"})
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestRetry(t *testing.T) {
	errDown := errors.New("down")

	tt := []struct {
		name     string
		failures int
		retries  int
		calls    int
		err      bool
	}{
		{name: "first attempt", failures: 0, retries: 5, calls: 1},
		{name: "recovers", failures: 2, retries: 5, calls: 3},
		{name: "exhausted", failures: 10, retries: 3, calls: 3, err: true},
		{name: "zero retries means one attempt", failures: 10, retries: 0, calls: 1, err: true},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			var calls int
			err := retry(context.Background(), Config{ConnectRetries: tc.retries, ConnectRetryInterval: time.Millisecond}, "test",
				func(context.Context) error {
					calls++
					if calls <= tc.failures {
						return errDown
					}
					return nil
				},
			)

			assert.Equal(t, tc.calls, calls)
			if tc.err {
				assert.True(t, errors.Is(err, errDown))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetry_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry(ctx, Config{ConnectRetries: 5, ConnectRetryInterval: time.Hour}, "test", func(context.Context) error {
		return errors.New("down")
	})
	assert.Equal(t, context.Canceled, err)
}
