package retrieval

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/raphaelgruber/docrag/internal/metrics"
	"github.com/raphaelgruber/docrag/internal/vector"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	return f.vector, f.err
}

type fakeIndex struct {
	hits     []vector.Hit
	gotQuery vector.Query
}

func (f *fakeIndex) Search(_ context.Context, q vector.Query) ([]vector.Hit, error) {
	f.gotQuery = q
	// Honor the limit like the real index does.
	hits := f.hits
	if q.Limit < len(hits) {
		hits = hits[:q.Limit]
	}
	out := make([]vector.Hit, 0, len(hits))
	for _, h := range hits {
		if q.MinScore > 0 && h.Score < q.MinScore {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func newTestEngine(e *fakeEmbedder, idx *fakeIndex) *Engine {
	return NewEngine(e, idx, metrics.NewCollector(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func hit(doc string, score float64, vec []float32, content string) vector.Hit {
	return vector.Hit{
		Score:  score,
		Vector: vec,
		Payload: vector.Payload{
			DocumentID: doc,
			Title:      doc + ".pdf",
			Content:    content,
		},
	}
}

func TestRetrieve_OverfetchesCandidates(t *testing.T) {
	idx := &fakeIndex{}
	e := newTestEngine(&fakeEmbedder{vector: []float32{1, 0}}, idx)

	tests := []struct {
		topK      int
		wantLimit int
	}{
		{topK: 5, wantLimit: 20}, // floor wins over 3*5
		{topK: 10, wantLimit: 30},
		{topK: 2, wantLimit: 20},
	}
	for _, tt := range tests {
		if _, err := e.Retrieve(context.Background(), "q", Params{TopK: tt.topK}); err != nil {
			t.Fatalf("Retrieve() error = %v", err)
		}
		if idx.gotQuery.Limit != tt.wantLimit {
			t.Errorf("topK %d: limit = %d, want %d", tt.topK, idx.gotQuery.Limit, tt.wantLimit)
		}
		if !idx.gotQuery.WithVectors {
			t.Error("expected WithVectors for diversification")
		}
	}
}

func TestRetrieve_MinScoreFiltersAll(t *testing.T) {
	idx := &fakeIndex{hits: []vector.Hit{
		hit("a", 0.8, []float32{1, 0}, "strong"),
		hit("b", 0.5, []float32{0, 1}, "medium"),
	}}
	e := newTestEngine(&fakeEmbedder{vector: []float32{1, 0}}, idx)

	results, err := e.Retrieve(context.Background(), "q", Params{TopK: 5, MinScore: 1.1})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result with impossible threshold, got %d", len(results))
	}
}

func TestRetrieve_MinScoreDropsWeakHits(t *testing.T) {
	idx := &fakeIndex{hits: []vector.Hit{
		hit("a", 0.9, []float32{1, 0}, "strong"),
		hit("b", 0.2, []float32{0, 1}, "weak"),
	}}
	e := newTestEngine(&fakeEmbedder{vector: []float32{1, 0}}, idx)

	results, err := e.Retrieve(context.Background(), "q", Params{TopK: 5, MinScore: 0.3})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 1 || results[0].DocumentID != "a" {
		t.Errorf("results = %+v", results)
	}
}

func TestRetrieve_DocumentFilterPassedThrough(t *testing.T) {
	idx := &fakeIndex{}
	e := newTestEngine(&fakeEmbedder{vector: []float32{1, 0}}, idx)

	_, err := e.Retrieve(context.Background(), "q", Params{TopK: 3, DocumentIDs: []string{"d1", "d2"}})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(idx.gotQuery.DocumentIDs) != 2 {
		t.Errorf("document filter = %v", idx.gotQuery.DocumentIDs)
	}
}

func TestRetrieve_DiversificationPrefersDistinctContent(t *testing.T) {
	// Three near-identical high scorers and one different medium scorer.
	// With lambda 0.6 the diversifier should pick the different one second.
	same := []float32{1, 0, 0}
	other := []float32{0, 1, 0}
	idx := &fakeIndex{hits: []vector.Hit{
		hit("a", 0.95, same, "dup 1"),
		hit("a", 0.94, same, "dup 2"),
		hit("a", 0.93, same, "dup 3"),
		hit("b", 0.70, other, "distinct"),
	}}
	e := newTestEngine(&fakeEmbedder{vector: []float32{1, 0, 0}}, idx)

	results, err := e.Retrieve(context.Background(), "q", Params{TopK: 2})
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Content != "dup 1" {
		t.Errorf("first pick = %q, want the top scorer", results[0].Content)
	}
	if results[1].Content != "distinct" {
		t.Errorf("second pick = %q, want the diverse candidate", results[1].Content)
	}
}

func TestMMRSelect_LambdaOneIsPureRelevance(t *testing.T) {
	same := []float32{1, 0}
	candidates := []Candidate{
		{Score: 0.9, Vector: same},
		{Score: 0.8, Vector: same},
		{Score: 0.7, Vector: []float32{0, 1}},
	}

	selected := mmrSelect(candidates, 2, 1.0)
	if len(selected) != 2 {
		t.Fatalf("got %d selected", len(selected))
	}
	if selected[0].Score != 0.9 || selected[1].Score != 0.8 {
		t.Errorf("lambda=1 should rank by score only: %v, %v", selected[0].Score, selected[1].Score)
	}
}

func TestMMRSelect_FewerCandidatesThanK(t *testing.T) {
	candidates := []Candidate{{Score: 0.5, Vector: []float32{1}}}
	selected := mmrSelect(candidates, 10, 0.6)
	if len(selected) != 1 {
		t.Errorf("got %d selected, want 1", len(selected))
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "length mismatch", a: []float32{1}, b: []float32{1, 1}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosineSimilarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity() = %f, want %f", got, tt.want)
			}
		})
	}
}
