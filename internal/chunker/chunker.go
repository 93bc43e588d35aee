// Package chunker splits normalized document text into fixed-size
// overlapping chunks for embedding. Splitting is a pure, deterministic
// transformation over runes, so a multi-byte character is never cut in half.
package chunker

import "strings"

// Config defines chunking parameters, both in characters (runes).
type Config struct {
	// Size is the maximum chunk length.
	Size int
	// Overlap is how many characters of the previous chunk's tail are
	// repeated at the start of the next chunk.
	Overlap int
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		Size:    3000,
		Overlap: 450,
	}
}

// Chunk is one bounded span of the source text.
type Chunk struct {
	Ordinal int    // position within the document, strictly increasing from 0
	Text    string
	Start   int // rune offset of the first character in the source
	End     int // rune offset one past the last character
}

// Split cuts text into overlapping chunks. Each chunk after the first starts
// Overlap characters before the end of the previous chunk's span, so adjacent
// chunks share a fixed-size textual overlap.
//
// Text shorter than Size yields exactly one chunk. Empty or whitespace-only
// text yields zero chunks; callers are expected to treat that as an error
// condition rather than index an empty document.
func Split(text string, cfg Config) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if cfg.Size <= 0 {
		cfg.Size = DefaultConfig().Size
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.Size {
		cfg.Overlap = 0
	}

	runes := []rune(text)
	n := len(runes)
	step := cfg.Size - cfg.Overlap

	var chunks []Chunk
	for start := 0; ; start += step {
		end := start + cfg.Size
		if end > n {
			end = n
		}
		chunks = append(chunks, Chunk{
			Ordinal: len(chunks),
			Text:    string(runes[start:end]),
			Start:   start,
			End:     end,
		})
		if end == n {
			break
		}
	}
	return chunks
}

// Reassemble reconstructs the original text from chunks produced by Split
// with the same config: every chunk contributes its first Size-Overlap
// characters, except the last which contributes all of them.
func Reassemble(chunks []Chunk, cfg Config) string {
	if len(chunks) == 0 {
		return ""
	}
	step := cfg.Size - cfg.Overlap
	if step <= 0 {
		step = cfg.Size
	}

	var b strings.Builder
	for i, c := range chunks {
		runes := []rune(c.Text)
		if i < len(chunks)-1 && len(runes) > step {
			runes = runes[:step]
		}
		b.WriteString(string(runes))
	}
	return b.String()
}
