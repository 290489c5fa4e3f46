package logging

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_TagsRequestID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	prev := L()
	SetBase(zap.New(core))
	t.Cleanup(func() { SetBase(prev) })

	ctx := WithRequestID(context.Background(), "req-42")
	FromContext(ctx).LogError("save_project", errors.New("boom"))
	FromContext(context.Background()).LogInfof("load", "loaded %d items", 3)

	entries := logs.All()
	if assert.Len(t, entries, 2) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "req-42", fields["request_id"])
		assert.Equal(t, "save_project", fields["operation"])
		assert.Equal(t, "boom", fields["error"])

		assert.Equal(t, "unknown", entries[1].ContextMap()["request_id"])
		assert.Equal(t, "loaded 3 items", entries[1].Message)
	}
}

func TestNew_FallsBackToInfo(t *testing.T) {
	l := New(Options{Level: "not-a-level"})
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.False(t, l.Core().Enabled(zap.DebugLevel))
}
