// Package retriever selects the example evaluations most similar to a student answer.
//
// The index embeds every example once, lazily, on first use. After a successful
// build the entries are read-only and shared by all callers without locking.
package retriever

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/peel-evaluator/internal/embeddings"
	"github.com/giantswarm/peel-evaluator/internal/examples"
	"github.com/giantswarm/peel-evaluator/internal/peelerrors"
)

// Match is one selected example with its similarity to the query.
type Match struct {
	Example examples.Example `json:"example"`
	Score   float64          `json:"score"`
	Rank    int              `json:"rank"`
}

type entry struct {
	vector  []float32
	example examples.Example
}

type snapshot struct {
	entries   []entry
	dimension int
}

// Index is an in-memory nearest-neighbour index over a corpus.
type Index struct {
	embedder embeddings.Embedder
	corpus   *examples.Corpus

	built atomic.Pointer[snapshot]
	group singleflight.Group
}

// New creates an index over corpus. No embedding work happens until Build or Select.
func New(embedder embeddings.Embedder, corpus *examples.Corpus) *Index {
	return &Index{
		embedder: embedder,
		corpus:   corpus,
	}
}

// Size returns the number of examples in the index. A nil index is empty.
func (idx *Index) Size() int {
	if idx == nil {
		return 0
	}
	return idx.corpus.Len()
}

// Examples returns the corpus examples in insertion order.
func (idx *Index) Examples() []examples.Example {
	if idx == nil || idx.corpus == nil {
		return nil
	}
	return slices.Clone(idx.corpus.Examples)
}

// Built reports whether the embeddings have been computed.
func (idx *Index) Built() bool {
	if idx == nil {
		return false
	}
	return idx.built.Load() != nil
}

// Build embeds the corpus if that has not happened yet. Concurrent callers share
// one build. A failed build is not remembered, so the next call tries again.
func (idx *Index) Build(ctx context.Context) error {
	_, err := idx.load(ctx)
	return err
}

// Select returns the k examples nearest to query, nearest first. Examples with equal
// scores keep their corpus order.
func (idx *Index) Select(ctx context.Context, query string, k int) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, peelerrors.NewValidationError("query", "Please provide the text to find similar examples for.")
	}
	if size := idx.Size(); k < 1 || k > size {
		return nil, peelerrors.NewValidationError("k",
			fmt.Sprintf("The number of examples must be between 1 and %d, got %d.", size, k))
	}

	snap, err := idx.load(ctx)
	if err != nil {
		return nil, err
	}

	queryVec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, peelerrors.NewConfigError("Could not embed the student answer", err)
	}
	if len(queryVec) != snap.dimension {
		return nil, peelerrors.NewConfigError("Could not embed the student answer",
			fmt.Errorf("query dimension %d does not match index dimension %d", len(queryVec), snap.dimension))
	}
	q := slices.Clone(queryVec)
	if !embeddings.NormalizeL2(q) {
		return nil, peelerrors.NewConfigError("Could not embed the student answer",
			fmt.Errorf("embedding service returned a zero vector"))
	}

	matches := make([]Match, len(snap.entries))
	for i, e := range snap.entries {
		matches[i] = Match{Example: e.example, Score: embeddings.Dot(q, e.vector)}
	}
	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	matches = matches[:k]
	for i := range matches {
		matches[i].Rank = i + 1
	}
	return matches, nil
}

func (idx *Index) load(ctx context.Context) (*snapshot, error) {
	if snap := idx.built.Load(); snap != nil {
		return snap, nil
	}

	v, err, _ := idx.group.Do("build", func() (any, error) {
		if snap := idx.built.Load(); snap != nil {
			return snap, nil
		}
		// Other callers may be waiting on this build; one caller going away must not fail it.
		snap, err := idx.build(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		idx.built.Store(snap)
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

func (idx *Index) build(ctx context.Context) (*snapshot, error) {
	if idx.embedder == nil {
		return nil, peelerrors.NewConfigError("Example retrieval is not configured", nil)
	}
	if idx.corpus.Len() == 0 {
		return nil, peelerrors.NewConfigError("The example corpus is empty", nil)
	}

	start := time.Now()
	slog.Info("building example index", "corpus", idx.corpus.Name, "examples", idx.corpus.Len())

	vectors, err := idx.embedder.EmbedBatch(ctx, idx.corpus.Texts())
	if err != nil {
		slog.Error("example index build failed", "corpus", idx.corpus.Name, "error", err)
		return nil, peelerrors.NewConfigError("Could not embed the example evaluations", err)
	}
	if len(vectors) != idx.corpus.Len() {
		return nil, peelerrors.NewConfigError("Could not embed the example evaluations",
			fmt.Errorf("got %d vectors for %d examples", len(vectors), idx.corpus.Len()))
	}

	snap := &snapshot{entries: make([]entry, len(vectors))}
	for i, vec := range vectors {
		if i == 0 {
			snap.dimension = len(vec)
		}
		if len(vec) == 0 || len(vec) != snap.dimension {
			return nil, peelerrors.NewConfigError("Could not embed the example evaluations",
				fmt.Errorf("example %q has dimension %d, want %d", idx.corpus.Examples[i].Label, len(vec), snap.dimension))
		}
		v := slices.Clone(vec)
		if !embeddings.NormalizeL2(v) {
			return nil, peelerrors.NewConfigError("Could not embed the example evaluations",
				fmt.Errorf("example %q has a zero embedding", idx.corpus.Examples[i].Label))
		}
		snap.entries[i] = entry{vector: v, example: idx.corpus.Examples[i]}
	}

	slog.Info("example index built",
		"corpus", idx.corpus.Name,
		"examples", len(snap.entries),
		"dimension", snap.dimension,
		"duration", time.Since(start))
	return snap, nil
}
