package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/edgard/botfriend/internal/config"
	"github.com/edgard/botfriend/internal/logger"
)

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: genai.FinishReasonStop,
		}},
	}
}

func newTestClient(generate generateFunc) *sdkClient {
	return newSDKClient(generate, config.GeminiConfig{
		Model:      "test-model",
		Timeout:    time.Second,
		MaxRetries: 2,
	}, logger.Discard())
}

func TestGeneratePost(t *testing.T) {
	var gotModel, gotPrompt string
	c := newTestClient(func(_ context.Context, model string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		gotModel = model
		gotPrompt = contents[0].Parts[0].Text
		return textResponse(`  "A fresh post"  `), nil
	})

	text, err := c.GeneratePost(context.Background(), PostRequest{
		Prompt:    "Write about cats.",
		Recent:    []string{"old\npost"},
		MaxLength: 280,
	})
	require.NoError(t, err)
	assert.Equal(t, "A fresh post", text)
	assert.Equal(t, "test-model", gotModel)
	assert.Contains(t, gotPrompt, "Write about cats.")
	assert.Contains(t, gotPrompt, "under 280 characters")
	assert.Contains(t, gotPrompt, "- old post")
}

func TestGeneratePostRetries(t *testing.T) {
	t.Run("retriable errors", func(t *testing.T) {
		calls := 0
		c := newTestClient(func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			if calls < 3 {
				return nil, &genai.APIError{Code: 503, Message: "overloaded"}
			}
			return textResponse("finally"), nil
		})

		text, err := c.GeneratePost(context.Background(), PostRequest{Prompt: "go"})
		require.NoError(t, err)
		assert.Equal(t, "finally", text)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		c := newTestClient(func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			return nil, &genai.APIError{Code: 500}
		})

		_, err := c.GeneratePost(context.Background(), PostRequest{Prompt: "go"})
		require.Error(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		c := newTestClient(func(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			calls++
			return nil, errors.New("bad request")
		})

		_, err := c.GeneratePost(context.Background(), PostRequest{Prompt: "go"})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestExtractTextFailures(t *testing.T) {
	c := newTestClient(nil)
	ctx := context.Background()

	_, err := c.extractText(ctx, &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
			BlockReason:        genai.BlockedReasonSafety,
			BlockReasonMessage: "unsafe",
		},
	})
	assert.ErrorContains(t, err, "unsafe")

	_, err = c.extractText(ctx, &genai.GenerateContentResponse{})
	assert.ErrorContains(t, err, "no content")

	_, err = c.extractText(ctx, textResponse("   "))
	assert.Error(t, err)
}

func TestGeneratePostNeedsPrompt(t *testing.T) {
	_, err := newTestClient(nil).GeneratePost(context.Background(), PostRequest{})
	assert.Error(t, err)
}

func TestCleanPost(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		`"quoted"`:    "quoted",
		"“curly”":     "curly",
		"'single'":    "single",
		"plain":       "plain",
		`"`:           `"`,
		` "padded" `:  "padded",
		`say "hi"`:    `say "hi"`,
	}
	for in, want := range testCases {
		assert.Equal(t, want, cleanPost(in), in)
	}
}
