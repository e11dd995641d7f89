package batch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/peel-evaluator/internal/embeddings"
	"github.com/giantswarm/peel-evaluator/internal/examples"
	"github.com/giantswarm/peel-evaluator/internal/grader"
	"github.com/giantswarm/peel-evaluator/internal/retriever"
	"github.com/giantswarm/peel-evaluator/internal/testutil"
)

func TestReadSubmissions(t *testing.T) {
	data := "\ufeffID, Question ,Answer,Notes\n" +
		"s1,\"How is Macbeth presented?\",\"Macbeth is ambitious, \"\"vaulting\"\".\",x\n" +
		"s2,Q2,A2\n"

	subs, err := ReadSubmissions(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, Submission{ID: "s1", Question: "How is Macbeth presented?", Answer: `Macbeth is ambitious, "vaulting".`}, subs[0])
	assert.Equal(t, "s2", subs[1].ID)
}

func TestReadSubmissionsErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"empty file", "", "header"},
		{"missing column", "ID,Question\n1,Q\n", "missing required CSV column: Answer"},
		{"short row", "ID,Question,Answer\n1,Q\n", "row 2"},
		{"empty id", "ID,Question,Answer\n ,Q,A\n", "empty ID"},
		{"duplicate id", "ID,Question,Answer\n1,Q,A\n1,Q,B\n", "repeats ID"},
		{"ids sharing a feedback file", "ID,Question,Answer\ns/1,Q,A\ns_1,Q,B\n", "share the feedback file s_1.txt"},
		{"no rows", "ID,Question,Answer\n", "no submissions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadSubmissions(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSubmissions(t *testing.T) {
	file := filepath.Join(t.TempDir(), "subs.csv")
	require.NoError(t, os.WriteFile(file, []byte("ID,Question,Answer\na,Q,A\n"), 0o644))

	subs, err := LoadSubmissions(file)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	_, err = LoadSubmissions(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func newGrader(client *testutil.MockLLMClient) *grader.Grader {
	corpus := &examples.Corpus{
		Name: "test",
		Examples: []examples.Example{
			{Label: "one", Text: "first marked essay"},
			{Label: "two", Text: "second marked essay"},
		},
	}
	return grader.New(client, retriever.New(embeddings.NewMockEmbedder(), corpus), grader.Config{
		Model: "gpt-4o-mini",
		K:     1,
	})
}

func TestRunnerGradesSubmissions(t *testing.T) {
	tmpDir := t.TempDir()
	client := &testutil.MockLLMClient{DefaultResponse: "**Score: 12/15**"}
	r := NewRunner(newGrader(client), tmpDir)

	var progress []string
	r.SetProgressFunc(func(id string, index, total int) {
		progress = append(progress, id)
		assert.Equal(t, 2, total)
	})

	run, err := r.Run(context.Background(), "year 9 essays", []Submission{
		{ID: "s/1", Question: "Q1", Answer: "first marked essay"},
		{ID: "s2", Question: "Q2", Answer: "second marked essay"},
	}, grader.Request{Template: "peel-examples"})
	require.NoError(t, err)

	assert.Equal(t, []string{"s/1", "s2"}, progress)
	assert.True(t, strings.HasPrefix(run.ID, "year_9_essays_"))
	assert.NotEmpty(t, run.UUID)
	assert.Zero(t, run.Failed())
	require.Len(t, run.Results, 2)
	assert.Equal(t, "s_1.txt", run.Results[0].FeedbackFile)
	assert.Equal(t, []string{"one"}, run.Results[0].Examples)
	assert.Equal(t, []string{"two"}, run.Results[1].Examples)
	assert.Equal(t, 2, client.Calls())
	require.NotNil(t, run.Results[0].Score)
	assert.Equal(t, 12.0, run.Results[0].Score.Awarded)
	assert.Equal(t, 15.0, run.Results[0].Score.Total)

	summary := run.Summary()
	assert.Equal(t, 2, summary.Scored)
	require.NotNil(t, summary.MeanPercent)
	assert.InDelta(t, 80.0, *summary.MeanPercent, 0.001)

	content, err := os.ReadFile(filepath.Join(run.OutputDir, "s2.txt"))
	require.NoError(t, err)
	assert.Equal(t, "**Score: 12/15**", string(content))

	assert.FileExists(t, filepath.Join(tmpDir, run.ID, "resultset.json"))
}

func TestRunnerContinuesPastFailure(t *testing.T) {
	client := &testutil.MockLLMClient{ErrFor: map[string]error{"BROKEN": assert.AnError}}
	r := NewRunner(newGrader(client), t.TempDir())

	run, err := r.Run(context.Background(), "mixed", []Submission{
		{ID: "ok1", Question: "Q", Answer: "fine"},
		{ID: "bad", Question: "Q", Answer: "BROKEN answer"},
		{ID: "empty", Question: "Q", Answer: "  "},
		{ID: "ok2", Question: "Q", Answer: "also fine"},
	}, grader.Request{})
	require.NoError(t, err)

	require.Len(t, run.Results, 4)
	assert.Equal(t, 2, run.Failed())
	assert.Empty(t, run.Results[0].Error)
	assert.Contains(t, run.Results[1].Error, "currently unavailable")
	assert.Contains(t, run.Results[2].Error, "student's answer")
	assert.Empty(t, run.Results[3].Error)
	assert.NoFileExists(t, filepath.Join(run.OutputDir, "bad.txt"))

	data, err := os.ReadFile(filepath.Join(run.OutputDir, "resultset.json"))
	require.NoError(t, err)

	var manifest struct {
		ID      string `json:"id"`
		Summary struct {
			Scored   int `json:"scored"`
			Unscored int `json:"unscored"`
		} `json:"summary"`
		Results []struct {
			Submission   Submission `json:"submission"`
			FeedbackFile string     `json:"feedback_file"`
			Error        string     `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, run.ID, manifest.ID)
	assert.Equal(t, 0, manifest.Summary.Scored)
	assert.Equal(t, 2, manifest.Summary.Unscored, "failed submissions are not counted")
	require.Len(t, manifest.Results, 4)
	assert.Equal(t, "bad", manifest.Results[1].Submission.ID)
	assert.NotEmpty(t, manifest.Results[1].Error)
	assert.Equal(t, "ok2.txt", manifest.Results[3].FeedbackFile)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	client := &testutil.MockLLMClient{}
	r := NewRunner(newGrader(client), t.TempDir())

	ctx, cancel := context.WithCancel(context.Background())
	r.SetProgressFunc(func(id string, _, _ int) {
		if id == "2" {
			cancel()
		}
	})

	run, err := r.Run(ctx, "cancel", []Submission{
		{ID: "1", Question: "Q", Answer: "A"},
		{ID: "2", Question: "Q", Answer: "A"},
		{ID: "3", Question: "Q", Answer: "A"},
	}, grader.Request{})
	require.NoError(t, err)
	assert.Len(t, run.Results, 2)
}

func TestRunnerRequiresSubmissions(t *testing.T) {
	r := NewRunner(newGrader(&testutil.MockLLMClient{}), t.TempDir())
	_, err := r.Run(context.Background(), "none", nil, grader.Request{})
	assert.Error(t, err)
}

func TestRunnerRejectsCollidingFeedbackFiles(t *testing.T) {
	client := &testutil.MockLLMClient{}
	tmpDir := t.TempDir()
	r := NewRunner(newGrader(client), tmpDir)

	_, err := r.Run(context.Background(), "collide", []Submission{
		{ID: "s/1", Question: "Q", Answer: "A"},
		{ID: "s_1", Question: "Q", Answer: "B"},
	}, grader.Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s_1.txt")
	assert.Zero(t, client.Calls())

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no run directory is created")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c_d", sanitizeFilename("a/b:c*d"))
	assert.Equal(t, "plain", sanitizeFilename("plain"))
}
