// Package parser turns uploaded files into normalized plain text ready for
// chunking. Plain formats (txt, md, csv, html, docx) are handled natively;
// everything else is delegated to a remote converter service.
package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrUnsupportedFormat is returned for file extensions no handler accepts.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrParseFailed is returned when a handler accepted the file but could
	// not extract any text from it.
	ErrParseFailed = errors.New("failed to parse document")
)

// ImageRef points at a page image exported by the remote converter.
type ImageRef struct {
	Page     int    `json:"page"`
	Filename string `json:"filename"`
}

// Result is the normalized output of parsing a single file.
type Result struct {
	// Text is the full document text in reading order, markdown-flavored
	// where the source format carries structure.
	Text string
	// Pages maps page numbers to rune spans of Text. Empty for formats
	// without a page concept (txt, md, html, docx).
	Pages []PageSpan
	// Images lists exported page images, when the converter produced any.
	Images []ImageRef
}

// PageSpan is the rune range of one source page within Result.Text.
type PageSpan struct {
	Page  int
	Start int
	End   int
}

// Parser dispatches files to the right extraction handler by extension.
type Parser struct {
	remote *RemoteConverter
	logger *slog.Logger
}

// New creates a parser. remote may be nil, in which case formats that need
// the converter service fail with ErrUnsupportedFormat.
func New(remote *RemoteConverter, logger *slog.Logger) *Parser {
	return &Parser{remote: remote, logger: logger}
}

// remoteExts are formats we hand to the converter service instead of
// parsing in-process.
var remoteExts = map[string]bool{
	".pdf":  true,
	".pptx": true,
	".ppt":  true,
	".xlsx": true,
	".odt":  true,
	".odp":  true,
	".rtf":  true,
}

// SupportedExtensions returns every extension Parse accepts, native and
// remote, for upload validation.
func (p *Parser) SupportedExtensions() []string {
	exts := []string{".txt", ".md", ".markdown", ".csv", ".html", ".htm", ".docx", ".doc", ".dotx"}
	if p.remote != nil {
		for ext := range remoteExts {
			exts = append(exts, ext)
		}
	}
	return exts
}

// Parse extracts normalized text from data. filename is only used for
// extension dispatch; the bytes are never written to disk here.
func (p *Parser) Parse(ctx context.Context, filename string, data []byte) (*Result, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	// Legacy Word extensions share the docx container often enough that
	// trying the docx path first beats rejecting them outright.
	if ext == ".doc" || ext == ".dotx" {
		ext = ".docx"
	}

	switch ext {
	case ".txt", ".md", ".markdown", ".csv":
		text := normalizeText(string(data))
		if text == "" {
			return nil, fmt.Errorf("%w: %s contains no text", ErrParseFailed, filename)
		}
		return &Result{Text: text}, nil

	case ".html", ".htm":
		text := normalizeText(stripHTML(string(data)))
		if text == "" {
			return nil, fmt.Errorf("%w: %s contains no text", ErrParseFailed, filename)
		}
		return &Result{Text: text}, nil

	case ".docx":
		text, err := extractDocx(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrParseFailed, filename, err)
		}
		if text == "" {
			return nil, fmt.Errorf("%w: %s contains no text", ErrParseFailed, filename)
		}
		return &Result{Text: text}, nil
	}

	if remoteExts[ext] && p.remote != nil {
		p.logger.Debug("delegating to remote converter", "filename", filename, "ext", ext)
		res, err := p.remote.Convert(ctx, filename, data)
		if err != nil {
			return nil, fmt.Errorf("remote convert %s: %w", filename, err)
		}
		if strings.TrimSpace(res.Text) == "" {
			return nil, fmt.Errorf("%w: converter returned no text for %s", ErrParseFailed, filename)
		}
		return res, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
}

// normalizeText canonicalizes line endings, drops invalid UTF-8 and NULs,
// and collapses runs of blank lines.
func normalizeText(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\x00", "")

	lines := strings.Split(s, "\n")
	var b strings.Builder
	blanks := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blanks++
			if blanks > 2 {
				continue
			}
		} else {
			blanks = 0
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}
