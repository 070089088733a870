package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/require"
)

func TestFirstText(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: nil},
		{Content: &genai.Content{Parts: []genai.Part{genai.Text("   "), genai.Text(" Plant more trees. ")}}},
	}}
	got, err := firstText(resp)
	require.NoError(t, err)
	require.Equal(t, "Plant more trees.", got)

	_, err = firstText(&genai.GenerateContentResponse{})
	require.ErrorIs(t, err, ErrEmptyResponse)
	_, err = firstText(nil)
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNew_RequiresKey(t *testing.T) {
	_, err := New(context.Background(), "", "")
	require.Error(t, err)
}
