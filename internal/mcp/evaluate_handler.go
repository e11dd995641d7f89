package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/peel-evaluator/internal/grader"
	"github.com/giantswarm/peel-evaluator/internal/peelerrors"
	"github.com/giantswarm/peel-evaluator/internal/prompt"
	"github.com/giantswarm/peel-evaluator/internal/scorer"
	"github.com/giantswarm/peel-evaluator/internal/server"
)

func registerEvaluationTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	evaluateTool := mcp.NewTool("evaluate_answer",
		mcp.WithDescription("Evaluate a student's written answer against the PEEL rubric, steered by the most similar marked examples. Returns the feedback and the examples used."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question the student answered"),
		),
		mcp.WithString("student_answer",
			mcp.Required(),
			mcp.Description("The student's full answer"),
		),
		mcp.WithString("model",
			mcp.Description("Completion model (default: from config)"),
		),
		mcp.WithNumber("temperature",
			mcp.Description("Sampling temperature between 0 and 1 (default: from config)"),
		),
		mcp.WithNumber("k",
			mcp.Description("Number of similar examples to include (default: from config)"),
		),
		mcp.WithBoolean("use_examples",
			mcp.Description("Include similar marked examples in the prompt (default: true)"),
		),
		mcp.WithString("template",
			mcp.Description(fmt.Sprintf("Prompt template, one of %v (default: %s, or %s when use_examples is false)",
				prompt.Names(), prompt.DefaultTemplate, prompt.PlainTemplate)),
		),
	)
	s.AddTool(evaluateTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleEvaluateAnswer(ctx, request, sc)
	})

	return nil
}

type evaluationResult struct {
	Feedback    string        `json:"feedback"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Template    string        `json:"template"`
	Examples    []matchResult `json:"examples"`
	Score       *scorer.Score `json:"score,omitempty"`
	DurationMS  int64         `json:"duration_ms"`
}

func handleEvaluateAnswer(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Grader == nil {
		return mcp.NewToolResultError("grader is not configured"), nil
	}
	args := request.GetArguments()

	question, _ := args["question"].(string)
	answer, _ := args["student_answer"].(string)
	req := grader.Request{
		Question:      question,
		StudentAnswer: answer,
	}
	req.Model, _ = args["model"].(string)
	req.Template, _ = args["template"].(string)
	if t, ok := args["temperature"].(float64); ok {
		req.Temperature = &t
	}
	if k, ok := args["k"].(float64); ok {
		if k != float64(int(k)) {
			return mcp.NewToolResultError("k must be a whole number"), nil
		}
		n := int(k)
		req.K = &n
	}
	if use, ok := args["use_examples"].(bool); ok {
		req.UseExamples = &use
	}

	eval, err := sc.Grader.Evaluate(ctx, req)
	if err != nil {
		if !errors.Is(err, peelerrors.ErrValidation) {
			slog.Error("evaluate_answer failed", "error", err)
		}
		return mcp.NewToolResultError(peelerrors.UserMessage(err)), nil
	}

	result := evaluationResult{
		Feedback:    eval.Feedback,
		Model:       eval.Model,
		Temperature: eval.Temperature,
		Template:    eval.Template,
		Examples:    matchResults(eval.Examples),
		DurationMS:  eval.Duration.Milliseconds(),
	}
	if score, ok := scorer.Parse(eval.Feedback); ok {
		result.Score = &score
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal evaluation: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
