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
	"github.com/giantswarm/peel-evaluator/internal/retriever"
	"github.com/giantswarm/peel-evaluator/internal/server"
)

func registerExampleTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// list_examples
	listTool := mcp.NewTool("list_examples",
		mcp.WithDescription("List the marked example answers in the corpus with their labels and score bands"),
		mcp.WithBoolean("full",
			mcp.Description("Include the full example texts (default: false)"),
		),
	)
	s.AddTool(listTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListExamples(ctx, request, sc)
	})

	// select_examples
	selectTool := mcp.NewTool("select_examples",
		mcp.WithDescription("Find the marked examples most similar to a piece of text, nearest first"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Text to compare, usually a student answer"),
		),
		mcp.WithNumber("k",
			mcp.Description("Number of examples to return (default: from config)"),
		),
	)
	s.AddTool(selectTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSelectExamples(ctx, request, sc)
	})

	return nil
}

type exampleInfo struct {
	Label string `json:"label"`
	Band  string `json:"band,omitempty"`
	Chars int    `json:"chars"`
	Text  string `json:"text,omitempty"`
}

type matchResult struct {
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
	Label string  `json:"label"`
	Band  string  `json:"band,omitempty"`
	Text  string  `json:"text"`
}

func matchResults(matches []retriever.Match) []matchResult {
	out := make([]matchResult, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchResult{
			Rank:  m.Rank,
			Score: m.Score,
			Label: m.Example.Label,
			Band:  m.Example.Band,
			Text:  m.Example.Text,
		})
	}
	return out
}

func handleListExamples(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Corpus == nil {
		return mcp.NewToolResultError("no example corpus is loaded"), nil
	}
	full, _ := request.GetArguments()["full"].(bool)

	infos := make([]exampleInfo, 0, sc.Corpus.Len())
	for _, ex := range sc.Corpus.Examples {
		info := exampleInfo{Label: ex.Label, Band: ex.Band, Chars: len([]rune(ex.Text))}
		if full {
			info.Text = ex.Text
		}
		infos = append(infos, info)
	}

	data, err := json.MarshalIndent(infos, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal examples: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func handleSelectExamples(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Index == nil {
		return mcp.NewToolResultError("example retrieval is not configured"), nil
	}
	args := request.GetArguments()

	query, ok := args["query"].(string)
	if !ok {
		return mcp.NewToolResultError("query is required"), nil
	}

	k := 0
	if raw, ok := args["k"].(float64); ok {
		if raw != float64(int(raw)) {
			return mcp.NewToolResultError("k must be a whole number"), nil
		}
		k = int(raw)
	} else {
		defaultK := grader.DefaultK
		if sc.Grader != nil {
			defaultK = sc.Grader.Config().K
		}
		k = min(defaultK, sc.Index.Size())
	}

	matches, err := sc.Index.Select(ctx, query, k)
	if err != nil {
		if !errors.Is(err, peelerrors.ErrValidation) {
			slog.Error("select_examples failed", "error", err)
		}
		return mcp.NewToolResultError(peelerrors.UserMessage(err)), nil
	}

	data, err := json.MarshalIndent(matchResults(matches), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal matches: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
