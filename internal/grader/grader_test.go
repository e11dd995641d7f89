package grader

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/peel-evaluator/internal/embeddings"
	"github.com/giantswarm/peel-evaluator/internal/examples"
	"github.com/giantswarm/peel-evaluator/internal/llm"
	"github.com/giantswarm/peel-evaluator/internal/peelerrors"
	"github.com/giantswarm/peel-evaluator/internal/retriever"
	"github.com/giantswarm/peel-evaluator/internal/testutil"
)

func testCorpus() *examples.Corpus {
	return &examples.Corpus{
		Name: "test",
		Examples: []examples.Example{
			{Label: "high", Band: "13–15", Text: "HIGH EXAMPLE: layered analysis. Score: 14/15"},
			{Label: "mid", Band: "9–12", Text: "MID EXAMPLE: some explanation. Score: 10/15"},
			{Label: "low", Band: "0–8", Text: "LOW EXAMPLE: narration only. Score: 5/15"},
		},
	}
}

func newTestGrader(t *testing.T, client llm.Client) (*Grader, *embeddings.MockEmbedder) {
	t.Helper()
	emb := embeddings.NewMockEmbedder()
	idx := retriever.New(emb, testCorpus())
	g := New(client, idx, Config{
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		K:           3,
	})
	return g, emb
}

func intPtr(v int) *int { return &v }

func TestNewAppliesDefaults(t *testing.T) {
	g := New(nil, nil, Config{})
	cfg := g.Config()
	assert.Equal(t, llm.DefaultModel, cfg.Model)
	assert.Equal(t, DefaultK, cfg.K)
	assert.Equal(t, "peel-examples", cfg.Template)
	assert.Zero(t, cfg.Temperature)
	assert.False(t, cfg.DisableExamples)
}

func TestEvaluateWithExamples(t *testing.T) {
	client := &testutil.MockLLMClient{DefaultResponse: "**Score: 11/15**\n\nSolid PEEL structure."}
	g, emb := newTestGrader(t, client)

	eval, err := g.Evaluate(context.Background(), Request{
		Question:      "How does the writer present ambition?",
		StudentAnswer: "HIGH EXAMPLE: layered analysis. Score: 14/15",
		K:             intPtr(2),
	})
	require.NoError(t, err)

	assert.Equal(t, "**Score: 11/15**\n\nSolid PEEL structure.", eval.Feedback)
	assert.Equal(t, "gpt-4o-mini", eval.Model)
	assert.Equal(t, "peel-examples", eval.Template)
	assert.InDelta(t, 0.3, eval.Temperature, 1e-9)
	require.Len(t, eval.Examples, 2)
	assert.Equal(t, "high", eval.Examples[0].Example.Label)

	assert.Equal(t, 1, client.Calls())
	assert.Equal(t, 1, emb.BatchCalls())
	assert.Equal(t, 1, emb.EmbedCalls())

	sent := client.LastRequest()
	assert.Empty(t, sent.SystemMessage)
	assert.Equal(t, eval.Prompt, sent.UserMessage)
	require.NotNil(t, sent.Temperature)
	assert.InDelta(t, 0.3, *sent.Temperature, 1e-9)
	assert.Contains(t, sent.UserMessage, "HIGH EXAMPLE")
	assert.Contains(t, sent.UserMessage, "\n\n---\n\n")
	assert.Contains(t, sent.UserMessage, "QUESTION:\nHow does the writer present ambition?")
	assert.NotContains(t, sent.UserMessage, "{examples}")
}

func TestEvaluateRequestOverrides(t *testing.T) {
	client := &testutil.MockLLMClient{}
	g, emb := newTestGrader(t, client)

	eval, err := g.Evaluate(context.Background(), Request{
		Question:      "Why is the sky blue?",
		StudentAnswer: "Because the ocean is reflected in the sky.",
		Model:         "gpt-4o",
		Temperature:   llm.Float64Ptr(0),
		Template:      "general",
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", eval.Model)
	assert.Equal(t, "general", eval.Template)
	assert.Zero(t, eval.Temperature)
	assert.Empty(t, eval.Examples)
	assert.Zero(t, emb.Calls(), "general template has no examples section")
	assert.Contains(t, eval.Prompt, `Student Answer: "Because the ocean is reflected in the sky."`)
	require.NotNil(t, client.LastRequest().Temperature)
	assert.Zero(t, *client.LastRequest().Temperature)
}

func TestEvaluateWithoutExamples(t *testing.T) {
	client := &testutil.MockLLMClient{}
	g, emb := newTestGrader(t, client)
	off := false

	eval, err := g.Evaluate(context.Background(), Request{
		Question:      "Q",
		StudentAnswer: "A",
		UseExamples:   &off,
	})
	require.NoError(t, err)
	assert.Empty(t, eval.Examples)
	assert.Zero(t, emb.Calls())
	assert.Equal(t, "peel", eval.Template)
	assert.NotContains(t, eval.Prompt, "EXAMPLE EVALUATIONS")
	assert.NotContains(t, eval.Prompt, "EXAMPLE_EVALUATIONS")
	assert.Contains(t, eval.Prompt, "STUDENT_ANSWER:\nA")
}

func TestEvaluateWithoutExamplesKeepsNamedTemplate(t *testing.T) {
	client := &testutil.MockLLMClient{}
	g, emb := newTestGrader(t, client)
	off := false

	eval, err := g.Evaluate(context.Background(), Request{
		Question:      "Q",
		StudentAnswer: "A",
		UseExamples:   &off,
		Template:      "peel-examples",
	})
	require.NoError(t, err)
	assert.Equal(t, "peel-examples", eval.Template)
	assert.Empty(t, eval.Examples)
	assert.Zero(t, emb.Calls())
	assert.Contains(t, eval.Prompt, "EXAMPLE_EVALUATIONS:\n\n")
}

func TestEvaluateExamplesDisabledByConfig(t *testing.T) {
	client := &testutil.MockLLMClient{}
	emb := embeddings.NewMockEmbedder()
	g := New(client, retriever.New(emb, testCorpus()), Config{DisableExamples: true})

	eval, err := g.Evaluate(context.Background(), Request{Question: "Q", StudentAnswer: "A"})
	require.NoError(t, err)
	assert.Equal(t, "peel", eval.Template)
	assert.Zero(t, emb.Calls())

	on := true
	eval, err = g.Evaluate(context.Background(), Request{Question: "Q", StudentAnswer: "A", UseExamples: &on})
	require.NoError(t, err)
	assert.Equal(t, "peel-examples", eval.Template)
	assert.Len(t, eval.Examples, 3)
}

func TestEvaluateDefaultKIsClampedToCorpus(t *testing.T) {
	client := &testutil.MockLLMClient{}
	emb := embeddings.NewMockEmbedder()
	g := New(client, retriever.New(emb, testCorpus()), Config{K: 5})

	eval, err := g.Evaluate(context.Background(), Request{Question: "Q", StudentAnswer: "A"})
	require.NoError(t, err)
	assert.Len(t, eval.Examples, 3)
}

func TestEvaluateValidationMakesNoCalls(t *testing.T) {
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{"empty question", Request{Question: "", StudentAnswer: "A"}, "question"},
		{"blank question", Request{Question: "  \n", StudentAnswer: "A"}, "question"},
		{"empty answer", Request{Question: "Q", StudentAnswer: ""}, "student_answer"},
		{"blank answer", Request{Question: "Q", StudentAnswer: "\t"}, "student_answer"},
		{"unknown template", Request{Question: "Q", StudentAnswer: "A", Template: "sonnet"}, "template"},
		{"temperature too high", Request{Question: "Q", StudentAnswer: "A", Temperature: llm.Float64Ptr(1.5)}, "temperature"},
		{"negative temperature", Request{Question: "Q", StudentAnswer: "A", Temperature: llm.Float64Ptr(-0.1)}, "temperature"},
		{"k above corpus", Request{Question: "Q", StudentAnswer: "A", K: intPtr(4)}, "k"},
		{"zero k", Request{Question: "Q", StudentAnswer: "A", K: intPtr(0)}, "k"},
		{"negative k", Request{Question: "Q", StudentAnswer: "A", K: intPtr(-1)}, "k"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &testutil.MockLLMClient{}
			g, emb := newTestGrader(t, client)

			eval, err := g.Evaluate(context.Background(), tt.req)
			assert.Nil(t, eval)
			require.ErrorIs(t, err, peelerrors.ErrValidation)

			var vErr *peelerrors.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Zero(t, client.Calls())
			assert.Zero(t, emb.Calls())
		})
	}
}

func TestEvaluateMissingClient(t *testing.T) {
	emb := embeddings.NewMockEmbedder()
	g := New(nil, retriever.New(emb, testCorpus()), Config{})

	_, err := g.Evaluate(context.Background(), Request{Question: "Q", StudentAnswer: "A"})
	require.ErrorIs(t, err, peelerrors.ErrConfig)
	assert.Contains(t, peelerrors.UserMessage(err), "OPENAI_API_KEY")
	assert.Zero(t, emb.Calls())
}

func TestEvaluateMissingIndex(t *testing.T) {
	client := &testutil.MockLLMClient{}
	g := New(client, nil, Config{})

	_, err := g.Evaluate(context.Background(), Request{Question: "Q", StudentAnswer: "A", K: intPtr(2)})
	require.ErrorIs(t, err, peelerrors.ErrConfig)
	assert.Zero(t, client.Calls())

	// Templates without an examples section do not need the index.
	eval, err := g.Evaluate(context.Background(), Request{Question: "Q", StudentAnswer: "A", Template: "peel"})
	require.NoError(t, err)
	assert.Equal(t, "peel", eval.Template)
}

func TestEvaluateCompletionFailure(t *testing.T) {
	client := &testutil.MockLLMClient{Err: assert.AnError}
	g, _ := newTestGrader(t, client)

	eval, err := g.Evaluate(context.Background(), Request{Question: "Q", StudentAnswer: "A"})
	assert.Nil(t, eval)
	require.ErrorIs(t, err, peelerrors.ErrUpstream)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, client.Calls(), "completion is not retried")
	assert.NotContains(t, peelerrors.UserMessage(err), assert.AnError.Error())
}

func TestEvaluateEmbeddingFailure(t *testing.T) {
	client := &testutil.MockLLMClient{}
	g, emb := newTestGrader(t, client)
	emb.SetError(assert.AnError)

	_, err := g.Evaluate(context.Background(), Request{Question: "Q", StudentAnswer: "A"})
	require.ErrorIs(t, err, peelerrors.ErrConfig)
	assert.Zero(t, client.Calls())
}

func TestEvaluateFeedbackIsVerbatim(t *testing.T) {
	raw := "  Score: **9/15**  \n\n- not trimmed\n"
	client := &testutil.MockLLMClient{DefaultResponse: raw}
	g, _ := newTestGrader(t, client)

	eval, err := g.Evaluate(context.Background(), Request{Question: "Q", StudentAnswer: "A"})
	require.NoError(t, err)
	assert.Equal(t, raw, eval.Feedback)
	assert.True(t, strings.HasPrefix(eval.Feedback, "  "))
}
