package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

var (
	up   = func(ctx context.Context) error { return nil }
	down = func(ctx context.Context) error { return errors.New("connection refused") }
)

func TestCheckBasic(t *testing.T) {
	tests := []struct {
		name  string
		db    PingFunc
		redis PingFunc
		want  string
	}{
		{"all up", up, up, "healthy"},
		{"redis down", up, down, "degraded"},
		{"redis not configured", up, nil, "degraded"},
		{"database down", down, up, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(pingerFunc(tt.db), tt.redis, nil)
			assert.Equal(t, tt.want, h.CheckBasic(context.Background()).Status)
		})
	}
}

func TestCheckBasicReportsError(t *testing.T) {
	h := NewHealthChecker(pingerFunc(down), up, nil)
	status := h.CheckBasic(context.Background())

	assert.Equal(t, "connection refused", status.Database.Error)
	assert.Nil(t, status.Host)
}

func TestCheckDetailed(t *testing.T) {
	h := NewHealthChecker(pingerFunc(up), up, nil)
	status := h.CheckDetailed(context.Background())

	require.NotNil(t, status.Storage)
	assert.Equal(t, "disabled", status.Storage.Status)
	assert.NotNil(t, status.Host)
}
