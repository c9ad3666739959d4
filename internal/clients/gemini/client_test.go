package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestParseESGResponse(t *testing.T) {
	scores, err := parseESGResponse("```json\n{\"total\": 17.2, \"environmental\": 0.6, \"social\": 8.1, \"governance\": null}\n```")
	require.NoError(t, err)
	require.NotNil(t, scores.Total)
	assert.Equal(t, 17.2, *scores.Total)
	assert.Nil(t, scores.Governance)
}

func TestParseESGResponse_Rejects(t *testing.T) {
	_, err := parseESGResponse(`{"total": null}`)
	assert.Error(t, err, "all-null response carries no information")

	_, err = parseESGResponse(`{"total": 250}`)
	assert.Error(t, err)

	_, err = parseESGResponse(`I don't know`)
	assert.Error(t, err)
}

func TestExtractTextFromResponse(t *testing.T) {
	_, err := extractTextFromResponse(&genai.GenerateContentResponse{})
	assert.Error(t, err)

	text, err := extractTextFromResponse(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: `{"total":`}, {Text: `10}`}}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"total":10}`, text)
}
