package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModel struct{ id string }

func (m stubModel) Provider() string { return "stub" }
func (m stubModel) ModelID() string  { return m.id }
func (m stubModel) DoStream(ctx context.Context, opts CallOptions) (*StreamResult, error) {
	return &StreamResult{Stream: NewSliceReader(nil, nil)}, nil
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("stub", func(modelID string) (LanguageModel, error) {
		return stubModel{id: modelID}, nil
	}))

	m, err := r.Resolve("stub:small")
	require.NoError(t, err)
	assert.Equal(t, "small", m.ModelID())

	_, err = r.Resolve("stub")
	assert.Error(t, err)
	_, err = r.Resolve("missing:x")
	assert.Error(t, err)

	err = r.Register("stub", func(string) (LanguageModel, error) { return nil, nil })
	assert.Error(t, err)
}

func TestSliceReader_ErrAfterExhaustion(t *testing.T) {
	boom := errors.New("boom")
	r := NewSliceReader([]StreamPart{TextDelta{Text: "a"}}, boom)

	require.NoError(t, r.Err())
	require.True(t, r.Next())
	assert.Equal(t, TextDelta{Text: "a"}, r.Part())
	assert.False(t, r.Next())
	assert.ErrorIs(t, r.Err(), boom)
}

func TestError_Message(t *testing.T) {
	cause := errors.New("dial")
	e := &Error{Provider: "openai", Message: "unavailable", Cause: cause}
	assert.Equal(t, "openai: unavailable", e.Error())
	assert.ErrorIs(t, e, cause)
	assert.Equal(t, "error", (&Error{}).Error())
}
