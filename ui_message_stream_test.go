package ai

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitop-dev/aistream/provider"
	"github.com/bitop-dev/aistream/providertest"
)

func collectUIChunks(t *testing.T, s *UIMessageStream) []UIMessageChunk {
	t.Helper()
	var out []UIMessageChunk
	for s.Next() {
		out = append(out, s.Chunk())
	}
	require.NoError(t, s.Err())
	return out
}

func chunkTypes(chunks []UIMessageChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Type
		if c.Part != nil {
			out[i] += ":" + c.Part.Type
		}
	}
	return out
}

func TestUIMessageStream_ToolContinuation(t *testing.T) {
	model := providertest.NewModel(
		providertest.Call{Parts: toolCallParts("call-1", `{"a":2,"b":3}`)},
		providertest.Call{Parts: textParts("5", provider.FinishStop, provider.Usage{PromptTokens: 20, CompletionTokens: 2})},
	)
	res, err := StreamText(context.Background(), StreamTextRequest{
		Model: model, Prompt: "add", Tools: []Tool{addTool()}, MaxSteps: 2,
	})
	require.NoError(t, err)

	ui := res.UIMessageStream(UIMessageStreamOptions{MessageID: "msg-1"})
	assert.Same(t, ui, res.UIMessageStream(UIMessageStreamOptions{}))

	chunks := collectUIChunks(t, ui)
	assert.Equal(t, []string{
		UIChunkMessageStart,
		UIChunkMessageDelta + ":" + UIPartToolCall,
		UIChunkMessageDelta + ":" + UIPartToolResult,
		UIChunkMessageStop,
		UIChunkMessageStart,
		UIChunkMessageDelta + ":" + UIPartText,
		UIChunkMessageStop,
		UIChunkFinish,
	}, chunkTypes(chunks))

	assert.Equal(t, "msg-1", chunks[0].MessageID)
	assert.Equal(t, "msg-1", chunks[3].MessageID)
	assert.NotEmpty(t, chunks[4].MessageID)
	assert.NotEqual(t, "msg-1", chunks[4].MessageID)
	assert.Equal(t, 5, chunks[2].Part.Output)

	finish := chunks[len(chunks)-1]
	assert.Equal(t, FinishStop, finish.FinishReason)
	require.NotNil(t, finish.Usage)
	assert.Equal(t, 37, finish.Usage.TotalTokens)

	// The full stream is unaffected by the UI projection.
	events, err := drainEvents(t, res)
	require.NoError(t, err)
	assert.Len(t, events, 8)
}

func TestUIMessageStream_OmitsReasoningAndSources(t *testing.T) {
	model := providertest.NewModel(providertest.Call{Parts: []provider.StreamPart{
		provider.ReasoningDelta{Text: "hmm"},
		provider.SourcePart{Source: provider.Source{ID: "s1", URL: "https://example.com"}},
		provider.GeneratedFile{Data: []byte("hi"), MediaType: "text/plain"},
		provider.TextDelta{Text: "answer"},
		provider.Finish{FinishReason: provider.FinishStop},
	}})
	res, err := StreamText(context.Background(), StreamTextRequest{Model: model, Prompt: "q"})
	require.NoError(t, err)

	chunks := collectUIChunks(t, res.UIMessageStream(UIMessageStreamOptions{OmitReasoning: true, OmitSources: true}))
	assert.Equal(t, []string{
		UIChunkMessageStart,
		UIChunkMessageDelta + ":" + UIPartFile,
		UIChunkMessageDelta + ":" + UIPartText,
		UIChunkMessageStop,
		UIChunkFinish,
	}, chunkTypes(chunks))
	assert.Equal(t, "data:text/plain;base64,aGk=", chunks[1].Part.URL)
}

func TestUIMessageStream_ErrorIsMasked(t *testing.T) {
	newRun := func() *StreamTextResult {
		model := providertest.NewModel(providertest.Call{
			Parts: []provider.StreamPart{provider.TextDelta{Text: "partial"}},
			Err:   errors.New("secret upstream detail"),
		})
		res, err := StreamText(context.Background(), StreamTextRequest{Model: model, Prompt: "hi"})
		require.NoError(t, err)
		return res
	}

	chunks := collectUIChunks(t, newRun().UIMessageStream(UIMessageStreamOptions{}))
	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	assert.Equal(t, UIChunkError, last.Type)
	assert.Equal(t, "An error occurred.", last.ErrorText)

	chunks = collectUIChunks(t, newRun().UIMessageStream(UIMessageStreamOptions{
		OnError: func(err error) string { return "failed: " + err.Error() },
	}))
	assert.Equal(t, "failed: secret upstream detail", chunks[len(chunks)-1].ErrorText)
}

func TestUIMessageStream_WriteToAndRead(t *testing.T) {
	model := providertest.NewModel(providertest.Call{Parts: []provider.StreamPart{
		provider.TextDelta{Text: "line one\nline two"},
		provider.Finish{FinishReason: provider.FinishStop},
	}})
	res, err := StreamText(context.Background(), StreamTextRequest{Model: model, Prompt: "hi"})
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := res.UIMessageStream(UIMessageStreamOptions{MessageID: "m"}).WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.True(t, strings.HasSuffix(buf.String(), "data: [DONE]\n\n"))

	chunks := collectUIChunks(t, ReadUIMessageStream(&buf))
	require.Len(t, chunks, 4)
	assert.Equal(t, "m", chunks[0].MessageID)
	assert.Equal(t, "line one\nline two", chunks[1].Part.Text)
	assert.Equal(t, UIChunkFinish, chunks[3].Type)
}

func TestUIMessageStream_AbortEndsQuietly(t *testing.T) {
	model := providertest.NewModel(providertest.Call{Hang: true})
	ctx, cancel := context.WithCancel(context.Background())
	res, err := StreamText(ctx, StreamTextRequest{Model: model, Prompt: "hi"})
	require.NoError(t, err)

	ui := res.UIMessageStream(UIMessageStreamOptions{})
	require.True(t, ui.Next())
	assert.Equal(t, UIChunkMessageStart, ui.Chunk().Type)
	cancel()

	assert.False(t, ui.Next())
	assert.NoError(t, ui.Err())
}

func TestUIMessageStream_AfterRunEnded(t *testing.T) {
	res := newTextRun(t, "a", "b")
	res.ConsumeStream(testContext(t), func(err error) { t.Errorf("unexpected error: %v", err) })
	_, err := res.Result(testContext(t))
	require.NoError(t, err)

	chunks := collectUIChunks(t, res.UIMessageStream(UIMessageStreamOptions{}))
	assert.Equal(t, []string{
		UIChunkMessageStart,
		UIChunkMessageDelta + ":" + UIPartText,
		UIChunkMessageDelta + ":" + UIPartText,
		UIChunkMessageStop,
		UIChunkFinish,
	}, chunkTypes(chunks))
}
