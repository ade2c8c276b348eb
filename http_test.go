package ai

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitop-dev/aistream/provider"
	"github.com/bitop-dev/aistream/providertest"
)

func newTextRun(t *testing.T, deltas ...string) *StreamTextResult {
	t.Helper()
	parts := make([]provider.StreamPart, 0, len(deltas)+1)
	for _, d := range deltas {
		parts = append(parts, provider.TextDelta{Text: d})
	}
	parts = append(parts, provider.Finish{FinishReason: provider.FinishStop})
	res, err := StreamText(context.Background(), StreamTextRequest{
		Model:  providertest.NewModel(providertest.Call{Parts: parts}),
		Prompt: "hi",
	})
	require.NoError(t, err)
	return res
}

func TestPipeTextStreamToResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	err := newTextRun(t, "Hel", "lo").PipeTextStreamToResponse(rec, nil)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Hello", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestPipeTextStreamToResponse_Overrides(t *testing.T) {
	rec := httptest.NewRecorder()
	err := newTextRun(t, "# hi").PipeTextStreamToResponse(rec, &ResponseInit{
		Status:  http.StatusAccepted,
		Headers: http.Header{"Content-Type": {"text/markdown"}, "X-Run": {"1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "text/markdown", rec.Header().Get("Content-Type"))
	assert.Equal(t, "1", rec.Header().Get("X-Run"))
}

func TestToTextStreamResponse(t *testing.T) {
	srv := httptest.NewServer(newTextRun(t, "a", "b", "c").ToTextStreamResponse(nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(body))
}

func TestToUIMessageStreamResponse(t *testing.T) {
	res := newTextRun(t, "hello")
	srv := httptest.NewServer(res.ToUIMessageStreamResponse(nil, UIMessageStreamOptions{MessageID: "msg"}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "v1", resp.Header.Get("X-Ui-Message-Stream"))

	chunks := collectUIChunks(t, ReadUIMessageStream(resp.Body))
	assert.Equal(t, []string{
		UIChunkMessageStart,
		UIChunkMessageDelta + ":" + UIPartText,
		UIChunkMessageStop,
		UIChunkFinish,
	}, chunkTypes(chunks))
	assert.Equal(t, "msg", chunks[0].MessageID)
}
