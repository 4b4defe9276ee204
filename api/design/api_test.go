package design

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"goa.design/goa/v3/eval"
	"goa.design/goa/v3/expr"
)

func TestDesignEvaluates(t *testing.T) {
	require.NoError(t, eval.RunDSL())

	for _, name := range []string{"auth", "chat", "health"} {
		assert.NotNil(t, expr.Root.Service(name), name)
	}

	chat := expr.Root.Service("chat")
	require.NotNil(t, chat)
	for _, method := range []string{"submit_support_request", "start_chat_session", "send_message", "live", "last_live"} {
		assert.NotNil(t, chat.Method(method), method)
	}
	assert.Equal(t, expr.ServerStreamKind, chat.Method("live").Stream)
}
