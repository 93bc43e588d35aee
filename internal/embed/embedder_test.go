package embed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

// fakeProvider returns deterministic vectors and records batch sizes.
type fakeProvider struct {
	dimension  int
	batchSizes []int
	failAfter  int // fail on the Nth EmbedDocuments call (1-based), 0 = never
	calls      int
}

func (f *fakeProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.failAfter > 0 && f.calls >= f.failAfter {
		return nil, errors.New("provider down")
	}
	f.batchSizes = append(f.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dimension)
		// Encode the text length so order preservation is observable.
		v[0] = float32(len(text))
		out[i] = v
	}
	return out, nil
}

func (f *fakeProvider) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, f.dimension)
	v[0] = float32(len(text))
	return v, nil
}

func newTestEmbedder(p Provider, dim int) *Embedder {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEmbedderWithProvider(p, dim, "test-model", logger)
}

func TestEmbedTexts_PreservesOrder(t *testing.T) {
	fake := &fakeProvider{dimension: 4}
	e := newTestEmbedder(fake, 4)

	texts := make([]string, 20)
	for i := range texts {
		texts[i] = fmt.Sprintf("%0*d", i+1, 0) // length i+1
	}

	vectors, err := e.EmbedTexts(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	if len(vectors) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if int(v[0]) != len(texts[i]) {
			t.Errorf("vector %d encodes length %d, want %d", i, int(v[0]), len(texts[i]))
		}
	}
}

func TestEmbedTexts_BatchSize(t *testing.T) {
	fake := &fakeProvider{dimension: 4}
	e := newTestEmbedder(fake, 4)

	texts := make([]string, 19)
	for i := range texts {
		texts[i] = "t"
	}

	if _, err := e.EmbedTexts(context.Background(), texts); err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}

	want := []int{8, 8, 3}
	if len(fake.batchSizes) != len(want) {
		t.Fatalf("got %d batches %v, want %v", len(fake.batchSizes), fake.batchSizes, want)
	}
	for i, size := range want {
		if fake.batchSizes[i] != size {
			t.Errorf("batch %d size = %d, want %d", i, fake.batchSizes[i], size)
		}
	}
}

func TestEmbedTexts_Empty(t *testing.T) {
	e := newTestEmbedder(&fakeProvider{dimension: 4}, 4)
	vectors, err := e.EmbedTexts(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("got %d vectors, want 0", len(vectors))
	}
}

func TestEmbedTexts_DimensionMismatch(t *testing.T) {
	// Provider produces 4-dim vectors but embedder expects 8.
	fake := &fakeProvider{dimension: 4}
	e := newTestEmbedder(fake, 8)

	_, err := e.EmbedTexts(context.Background(), []string{"a"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("EmbedTexts() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestEmbedTexts_ProviderFailure(t *testing.T) {
	fake := &fakeProvider{dimension: 4, failAfter: 2}
	e := newTestEmbedder(fake, 4)

	texts := make([]string, 12) // two batches, second fails
	for i := range texts {
		texts[i] = "t"
	}

	_, err := e.EmbedTexts(context.Background(), texts)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("EmbedTexts() error = %v, want ErrUnavailable", err)
	}
}

func TestEmbedBatched_Progress(t *testing.T) {
	fake := &fakeProvider{dimension: 4}
	e := newTestEmbedder(fake, 4)

	texts := make([]string, 17)
	for i := range texts {
		texts[i] = "t"
	}

	var progress [][2]int
	vectors, err := e.EmbedBatched(context.Background(), texts, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	if err != nil {
		t.Fatalf("EmbedBatched() error = %v", err)
	}
	if len(vectors) != 17 {
		t.Fatalf("got %d vectors, want 17", len(vectors))
	}

	want := [][2]int{{8, 17}, {16, 17}, {17, 17}}
	if len(progress) != len(want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Errorf("progress[%d] = %v, want %v", i, progress[i], want[i])
		}
	}
}

func TestEmbedQuery_DimensionCheck(t *testing.T) {
	fake := &fakeProvider{dimension: 4}
	e := newTestEmbedder(fake, 1024)

	_, err := e.EmbedQuery(context.Background(), "what is this")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("EmbedQuery() error = %v, want ErrDimensionMismatch", err)
	}
}
