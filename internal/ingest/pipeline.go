// Package ingest runs the document indexing pipeline: validate, parse,
// chunk, embed, index. Uploads are accepted synchronously and processed by
// a background worker pool, with progress tracked on the document record.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/docrag/internal/chunker"
	"github.com/raphaelgruber/docrag/internal/metrics"
	"github.com/raphaelgruber/docrag/internal/models"
	"github.com/raphaelgruber/docrag/internal/parser"
	"github.com/raphaelgruber/docrag/internal/store"
	"github.com/raphaelgruber/docrag/internal/vector"
)

var (
	// ErrFileTooLarge is returned when an upload exceeds the size limit.
	ErrFileTooLarge = errors.New("file exceeds maximum size")
	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("file is empty")
)

// Progress checkpoints for the pipeline stages. Embedding interpolates
// between progressEmbed and progressIndex per completed batch.
const (
	progressValidated = 5
	progressParsing   = 10
	progressParsed    = 40
	progressChunked   = 60
	progressEmbed     = 60
	progressIndex     = 85
	progressIndexed   = 99
)

// DocumentStore is the persistence surface the pipeline needs.
type DocumentStore interface {
	CreateDocument(ctx context.Context, input models.DocumentInput) (*models.Document, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	FindActiveDocumentByName(ctx context.Context, originalName string) (*models.Document, error)
	UpdateDocumentProgress(ctx context.Context, id string, status models.DocumentStatus, progress int, detail string) error
	SetDocumentReady(ctx context.Context, id string, chunkCount int) error
	SetDocumentError(ctx context.Context, id string, message string) error
	DeleteDocument(ctx context.Context, id string) error
}

// FileParser extracts normalized text from an uploaded file.
type FileParser interface {
	Parse(ctx context.Context, filename string, data []byte) (*parser.Result, error)
	SupportedExtensions() []string
}

// Embedder turns chunk texts into vectors, reporting per-batch progress.
type Embedder interface {
	EmbedBatched(ctx context.Context, texts []string, onBatch func(done, total int)) ([][]float32, error)
}

// Index is the vector index surface the pipeline needs.
type Index interface {
	Upsert(ctx context.Context, points []vector.Point) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Config tunes the pipeline.
type Config struct {
	Concurrency int
	Timeout     time.Duration
	MaxFileSize int64
	Chunking    chunker.Config
}

type task struct {
	documentID   string
	originalName string
	data         []byte
}

// Pipeline accepts uploads and indexes them in the background.
type Pipeline struct {
	store     DocumentStore
	parser    FileParser
	embedder  Embedder
	index     Index
	collector *metrics.Collector
	logger    *slog.Logger
	cfg       Config

	queue chan task
	wg    sync.WaitGroup
}

// NewPipeline creates the pipeline and starts its workers.
func NewPipeline(st DocumentStore, fp FileParser, emb Embedder, idx Index, collector *metrics.Collector, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Minute
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 * 1024 * 1024
	}
	if cfg.Chunking.Size <= 0 {
		cfg.Chunking = chunker.DefaultConfig()
	}

	p := &Pipeline{
		store:     st,
		parser:    fp,
		embedder:  emb,
		index:     idx,
		collector: collector,
		logger:    logger,
		cfg:       cfg,
		queue:     make(chan task, 256),
	}

	for i := 0; i < cfg.Concurrency; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			for t := range p.queue {
				p.runTask(workerID, t)
			}
		}(i)
	}
	return p
}

// Close stops accepting work and waits for in-flight documents to finish.
func (p *Pipeline) Close() {
	close(p.queue)
	p.wg.Wait()
}

// Accept validates an upload, records it as pending and queues it for
// processing. It returns as soon as the document record exists; indexing
// happens in the background.
func (p *Pipeline) Accept(ctx context.Context, originalName string, data []byte) (*models.Document, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", originalName, ErrEmptyFile)
	}
	if int64(len(data)) > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%s: %w (%d bytes, limit %d)", originalName, ErrFileTooLarge, len(data), p.cfg.MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if !p.extensionSupported(ext) {
		return nil, fmt.Errorf("%s: %w", ext, parser.ErrUnsupportedFormat)
	}

	// Uploads with the name of a live document are rejected. A document in
	// error status does not count, re-uploading after a failure is the
	// normal recovery path.
	existing, err := p.store.FindActiveDocumentByName(ctx, originalName)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%q: %w", originalName, store.ErrDuplicateDocument)
	}

	id := uuid.New().String()
	hash := sha256.Sum256(data)
	doc, err := p.store.CreateDocument(ctx, models.DocumentInput{
		ID:           id,
		Filename:     id + ext,
		OriginalName: originalName,
		FileType:     strings.TrimPrefix(ext, "."),
		ContentHash:  hex.EncodeToString(hash[:]),
	})
	if err != nil {
		return nil, err
	}

	p.queue <- task{documentID: id, originalName: originalName, data: data}
	p.logger.Info("document accepted", "document_id", id, "name", originalName, "size", len(data))
	return doc, nil
}

// Delete removes a document and its vectors. Documents that are still
// pending or processing cannot be deleted; the pipeline owns them until
// they reach a terminal status.
func (p *Pipeline) Delete(ctx context.Context, documentID string) error {
	doc, err := p.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if !doc.Status.Terminal() {
		return fmt.Errorf("document %s is %s: %w", documentID, doc.Status, store.ErrDocumentBusy)
	}

	// Vectors go first so a failure here leaves the document record
	// visible instead of orphaning points in the index.
	if err := p.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	if err := p.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	p.logger.Info("document deleted", "document_id", documentID, "name", doc.OriginalName)
	return nil
}

func (p *Pipeline) extensionSupported(ext string) bool {
	for _, supported := range p.parser.SupportedExtensions() {
		if ext == supported {
			return true
		}
	}
	return false
}

// runTask processes one document with a panic guard, so a single bad file
// cannot take down a worker.
func (p *Pipeline) runTask(workerID int, t task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("ingestion worker panicked", "worker", workerID, "document_id", t.documentID, "panic", r)
			_ = p.store.SetDocumentError(context.Background(), t.documentID, fmt.Sprintf("internal error: %v", r))
			_ = p.index.DeleteByDocument(context.Background(), t.documentID)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	if err := p.process(ctx, t); err != nil {
		p.logger.Warn("ingestion failed",
			"worker", workerID, "document_id", t.documentID, "name", t.originalName, "error", err)
		p.fail(t.documentID, err)
		return
	}
	p.collector.RecordTiming(metrics.OpIngest, time.Since(start))
	p.logger.Info("ingestion complete",
		"worker", workerID, "document_id", t.documentID, "name", t.originalName, "duration", time.Since(start))
}

// fail records the error on the document and rolls back any points already
// written to the index, so a partial ingestion never serves stale chunks.
func (p *Pipeline) fail(documentID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.store.SetDocumentError(ctx, documentID, cause.Error()); err != nil {
		p.logger.Error("failed to record ingestion error", "document_id", documentID, "error", err)
	}
	if err := p.index.DeleteByDocument(ctx, documentID); err != nil {
		p.logger.Error("failed to roll back index points", "document_id", documentID, "error", err)
	}
}

func (p *Pipeline) process(ctx context.Context, t task) error {
	docID := t.documentID

	if err := p.store.UpdateDocumentProgress(ctx, docID, models.StatusProcessing, progressValidated, "validating"); err != nil {
		return fmt.Errorf("start processing: %w", err)
	}

	// Parse
	if err := p.store.UpdateDocumentProgress(ctx, docID, models.StatusProcessing, progressParsing, "parsing"); err != nil {
		return err
	}
	parseStart := time.Now()
	parsed, err := p.parser.Parse(ctx, t.originalName, t.data)
	if err != nil {
		return err
	}
	p.collector.RecordTiming(metrics.OpParse, time.Since(parseStart))
	if err := p.store.UpdateDocumentProgress(ctx, docID, models.StatusProcessing, progressParsed, "parsed"); err != nil {
		return err
	}

	// Chunk
	chunks := chunker.Split(parsed.Text, p.cfg.Chunking)
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no text after parsing", parser.ErrParseFailed)
	}
	if err := p.store.UpdateDocumentProgress(ctx, docID, models.StatusProcessing, progressChunked, "chunked"); err != nil {
		return err
	}

	// Embed, walking progress forward per completed batch
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.EmbedBatched(ctx, texts, func(done, total int) {
		progress := progressEmbed + (progressIndex-progressEmbed)*done/total
		_ = p.store.UpdateDocumentProgress(ctx, docID, models.StatusProcessing, progress,
			fmt.Sprintf("embedding %d/%d", done, total))
	})
	if err != nil {
		return err
	}

	// Index
	if err := p.store.UpdateDocumentProgress(ctx, docID, models.StatusProcessing, progressIndex, "indexing"); err != nil {
		return err
	}
	points := buildPoints(docID, t.originalName, chunks, vectors, parsed)
	upsertStart := time.Now()
	if err := p.index.Upsert(ctx, points); err != nil {
		return err
	}
	p.collector.RecordTiming(metrics.OpVectorUpsert, time.Since(upsertStart))
	if err := p.store.UpdateDocumentProgress(ctx, docID, models.StatusProcessing, progressIndexed, "indexed"); err != nil {
		return err
	}

	return p.store.SetDocumentReady(ctx, docID, len(chunks))
}

// buildPoints assembles index points with page attribution: each chunk is
// attributed to the page containing its first character, and carries the
// images of every page its span touches.
func buildPoints(docID, title string, chunks []chunker.Chunk, vectors [][]float32, parsed *parser.Result) []vector.Point {
	points := make([]vector.Point, len(chunks))
	for i, c := range chunks {
		payload := vector.Payload{
			DocumentID: docID,
			Title:      title,
			Content:    c.Text,
			Ordinal:    c.Ordinal,
		}
		if len(parsed.Pages) > 0 {
			payload.Page = pageForOffset(parsed.Pages, c.Start)
			payload.ImageFilenames = imagesForSpan(parsed, c.Start, c.End)
		}
		points[i] = vector.Point{
			ID:      vector.NewPointID(),
			Vector:  vectors[i],
			Payload: payload,
		}
	}
	return points
}

func pageForOffset(pages []parser.PageSpan, offset int) int {
	for _, span := range pages {
		if offset >= span.Start && offset < span.End {
			return span.Page
		}
	}
	if len(pages) > 0 {
		return pages[len(pages)-1].Page
	}
	return 0
}

func imagesForSpan(parsed *parser.Result, start, end int) []string {
	if len(parsed.Images) == 0 {
		return nil
	}
	touched := make(map[int]bool)
	for _, span := range parsed.Pages {
		if span.Start < end && start < span.End {
			touched[span.Page] = true
		}
	}
	var images []string
	for _, img := range parsed.Images {
		if touched[img.Page] {
			images = append(images, img.Filename)
		}
	}
	return images
}
