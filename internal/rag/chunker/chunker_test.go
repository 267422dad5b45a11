package chunker

import (
	"strings"
	"testing"
)

func TestNewAppliesDefaults(t *testing.T) {
	s := NewRecursiveCharacterTextSplitter(Config{})
	if s.config.ChunkSize != 1000 {
		t.Errorf("ChunkSize = %d, want 1000", s.config.ChunkSize)
	}
	if s.config.ChunkOverlap != 200 {
		t.Errorf("ChunkOverlap = %d, want 200", s.config.ChunkOverlap)
	}
}

func TestNewClampsOversizedOverlap(t *testing.T) {
	s := NewRecursiveCharacterTextSplitter(Config{ChunkSize: 100, ChunkOverlap: 150})
	if s.config.ChunkOverlap != 20 {
		t.Errorf("ChunkOverlap = %d, want 20 (size/5)", s.config.ChunkOverlap)
	}
}

func TestSplitEmptyText(t *testing.T) {
	s := NewRecursiveCharacterTextSplitter(Config{})
	if got := s.Split("   \n\t  "); got != nil {
		t.Errorf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	s := NewRecursiveCharacterTextSplitter(Config{ChunkSize: 100, ChunkOverlap: 10})
	got := s.Split("a short paragraph")
	if len(got) != 1 || got[0] != "a short paragraph" {
		t.Errorf("Split() = %v, want the input unchanged", got)
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 40; i++ {
		sb.WriteString("The quick brown fox jumps over the lazy dog. ")
	}
	text := sb.String()

	cfg := Config{ChunkSize: 120, ChunkOverlap: 20}
	s := NewRecursiveCharacterTextSplitter(cfg)
	chunks := s.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > cfg.ChunkSize+cfg.ChunkOverlap {
			t.Errorf("chunk %d length %d exceeds size+overlap %d", i, len(c), cfg.ChunkSize+cfg.ChunkOverlap)
		}
	}
}

func TestSplitOverlapShared(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("alpha beta gamma delta. ")
	}
	cfg := Config{ChunkSize: 100, ChunkOverlap: 15}
	s := NewRecursiveCharacterTextSplitter(cfg)
	chunks := s.Split(sb.String())

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		// Each chunk begins with the tail of its predecessor, less any
		// whitespace trimming applied when the pieces were packed.
		prefix := chunks[i][:10]
		if !strings.Contains(chunks[i-1], prefix) {
			t.Errorf("chunk %d does not overlap its predecessor: %q vs %q", i, prefix, chunks[i-1])
		}
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	text := strings.Repeat("first paragraph sentence. ", 3) + "\n\n" + strings.Repeat("second paragraph sentence. ", 3)
	s := NewRecursiveCharacterTextSplitter(Config{ChunkSize: 90, ChunkOverlap: 0})
	chunks := s.Split(text)

	if len(chunks) < 2 {
		t.Fatalf("expected the paragraph break to split, got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if strings.Contains(c, "\n\n") {
			t.Errorf("chunk still spans a paragraph break: %q", c)
		}
	}
}

func TestSplitHardCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("x", 250)
	s := NewRecursiveCharacterTextSplitter(Config{ChunkSize: 100, ChunkOverlap: 0})
	chunks := s.Split(text)

	if len(chunks) != 3 {
		t.Fatalf("len(chunks) = %d, want 3", len(chunks))
	}
	if strings.Join(chunks, "") != text {
		t.Error("hard-cut chunks should reassemble the input")
	}
}
