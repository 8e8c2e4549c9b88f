package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type metaPinger struct{}

func (metaPinger) Ping(context.Context) (interface{}, error) { return "ok", nil }
func (metaPinger) Name() string                              { return "meta" }

func TestHandler(t *testing.T) {
	tt := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name:   "healthy",
			status: http.StatusOK,
			body:   `{"version":"dev","commit":"undefined","meta":{"meta":"ok","storage":null},"errors":{}}`,
		},
		{
			name:   "storage down",
			err:    errors.New("connection refused"),
			status: http.StatusInternalServerError,
			body:   `{"version":"dev","commit":"undefined","meta":{"meta":"ok","storage":null},"errors":{"storage":"connection refused"}}`,
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			h := Handler(time.Second, metaPinger{}, SubjectPinger("storage", func(ctx context.Context) error {
				_, ok := ctx.Deadline()
				assert.True(t, ok)
				return tc.err
			}))

			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.status, w.Code)
			assert.JSONEq(t, tc.body, w.Body.String())
		})
	}
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, "dev-undefined", GetVersion())
}
