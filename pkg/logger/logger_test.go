package logger

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Init("loud", "text"))
}

func TestInitJSON(t *testing.T) {
	t.Cleanup(func() { log = nil })

	require.NoError(t, Init("warn", "json"))
	assert.Equal(t, logrus.WarnLevel, log.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, log.Formatter)
}

func TestFromContextCarriesRequestID(t *testing.T) {
	l, hook := test.NewNullLogger()
	log = l
	t.Cleanup(func() { log = nil })

	ctx := WithRequestID(context.Background(), "req-1")
	FromContext(ctx).Info("hello")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "req-1", hook.LastEntry().Data["request_id"])
	assert.Equal(t, "hello", hook.LastEntry().Message)
}

func TestFromContextWithoutRequestID(t *testing.T) {
	l, hook := test.NewNullLogger()
	log = l
	t.Cleanup(func() { log = nil })

	FromContext(context.Background()).Warn("bare")

	require.Len(t, hook.Entries, 1)
	assert.NotContains(t, hook.LastEntry().Data, "request_id")
}
