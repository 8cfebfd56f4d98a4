package requestid

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	ctx, id := New(context.Background())
	assert.NotEmpty(t, id)
	assert.Equal(t, id, FromContext(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	id := FromContext(context.Background())
	assert.NotEmpty(t, id) // generates new UUID
}

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "test-123")
	assert.Equal(t, "test-123", FromContext(ctx))
}

func TestLogger_AddsEventID(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	Logger(WithRequestID(context.Background(), "evt-1"), base).Info().Msg("handled")
	assert.Contains(t, buf.String(), `"event_id":"evt-1"`)

	buf.Reset()
	Logger(context.Background(), base).Info().Msg("plain")
	assert.NotContains(t, buf.String(), "event_id")
}
