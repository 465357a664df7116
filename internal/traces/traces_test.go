package traces

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "", slog.Default())
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	// No-op shutdown never errors.
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpan_NoOpProvider(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "chain.rpc",
		Chain("polkadot"), Endpoint("https://rpc.polkadot.io"))
	defer span.End()

	require.NotNil(t, span)
	assert.NotNil(t, ctx)
	// Without an exporter configured the global provider is a no-op.
	assert.False(t, span.IsRecording())
}

func TestAttributeHelpers(t *testing.T) {
	assert.Equal(t, "chain", string(Chain("kusama").Key))
	assert.Equal(t, "kusama", Chain("kusama").Value.AsString())
	assert.Equal(t, "notify.channel", string(NotifyChannel("discord").Key))
	assert.Equal(t, "event.type", string(EventType("security_alert").Key))
	assert.Equal(t, "user.id", string(UserID("u1").Key))
	assert.Equal(t, "address", string(Address("5Grw").Key))
}
