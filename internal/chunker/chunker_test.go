package chunker

import (
	"strings"
	"testing"
)

func TestSplit_Empty(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "completely empty", text: ""},
		{name: "whitespace only", text: "   \n\n\t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, DefaultConfig())
			if len(chunks) != 0 {
				t.Errorf("Split() got %d chunks, want 0", len(chunks))
			}
		})
	}
}

func TestSplit_ShortText(t *testing.T) {
	text := "a short document, well under the chunk size"
	chunks := Split(text, DefaultConfig())

	if len(chunks) != 1 {
		t.Fatalf("Split() got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text = %q, want %q", chunks[0].Text, text)
	}
	if chunks[0].Start != 0 || chunks[0].End != len([]rune(text)) {
		t.Errorf("chunk span = [%d,%d), want [0,%d)", chunks[0].Start, chunks[0].End, len([]rune(text)))
	}
}

func TestSplit_OverlapOffsets(t *testing.T) {
	// 7000 chars with size=3000 overlap=450: chunk 2 starts at 2550,
	// chunk 3 at 5100.
	text := strings.Repeat("x", 7000)
	cfg := Config{Size: 3000, Overlap: 450}

	chunks := Split(text, cfg)
	if len(chunks) != 3 {
		t.Fatalf("Split() got %d chunks, want 3", len(chunks))
	}

	wantStarts := []int{0, 2550, 5100}
	for i, c := range chunks {
		if c.Start != wantStarts[i] {
			t.Errorf("chunk[%d].Start = %d, want %d", i, c.Start, wantStarts[i])
		}
		if c.Ordinal != i {
			t.Errorf("chunk[%d].Ordinal = %d, want %d", i, c.Ordinal, i)
		}
		if got := len([]rune(c.Text)); got > cfg.Size {
			t.Errorf("chunk[%d] length %d exceeds size %d", i, got, cfg.Size)
		}
	}
	if last := chunks[2]; last.End != 7000 {
		t.Errorf("last chunk End = %d, want 7000", last.End)
	}
}

func TestSplit_AdjacentChunksShareOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; b.Len() < 10000; i++ {
		b.WriteString(strings.Repeat(string(rune('a'+i%26)), 7))
		b.WriteString(" ")
	}
	text := b.String()
	cfg := Config{Size: 1000, Overlap: 200}

	chunks := Split(text, cfg)
	if len(chunks) < 2 {
		t.Fatalf("want multiple chunks, got %d", len(chunks))
	}

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		tail := string(prev[len(prev)-cfg.Overlap:])
		head := string(cur[:cfg.Overlap])
		if tail != head {
			t.Fatalf("chunk[%d] head does not match chunk[%d] tail", i, i-1)
		}
	}
}

func TestReassemble_Roundtrip(t *testing.T) {
	tests := []struct {
		name string
		text string
		cfg  Config
	}{
		{
			name: "exact multiple of step",
			text: strings.Repeat("0123456789", 255), // 2550 runes
			cfg:  Config{Size: 1000, Overlap: 150},
		},
		{
			name: "uneven tail",
			text: strings.Repeat("lorem ipsum dolor sit amet ", 500),
			cfg:  Config{Size: 3000, Overlap: 450},
		},
		{
			name: "multi-byte runes survive",
			text: strings.Repeat("héllo wörld — ünïcode çhärs ", 300),
			cfg:  Config{Size: 512, Overlap: 64},
		},
		{
			name: "single chunk",
			text: "tiny",
			cfg:  DefaultConfig(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, tt.cfg)
			if got := Reassemble(chunks, tt.cfg); got != tt.text {
				t.Errorf("roundtrip mismatch: got %d runes, want %d", len([]rune(got)), len([]rune(tt.text)))
			}
		})
	}
}

func TestSplit_ContiguousCover(t *testing.T) {
	text := strings.Repeat("abcdefghij", 1000)
	cfg := Config{Size: 3000, Overlap: 450}

	chunks := Split(text, cfg)
	step := cfg.Size - cfg.Overlap
	for i, c := range chunks {
		if i == 0 {
			if c.Start != 0 {
				t.Errorf("first chunk starts at %d", c.Start)
			}
			continue
		}
		if c.Start != chunks[i-1].Start+step {
			t.Errorf("chunk[%d] start = %d, want %d", i, c.Start, chunks[i-1].Start+step)
		}
		if c.Start >= chunks[i-1].End {
			t.Errorf("chunk[%d] does not overlap previous (start %d >= prev end %d)", i, c.Start, chunks[i-1].End)
		}
	}
}
