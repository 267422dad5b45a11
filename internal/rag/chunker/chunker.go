// Package chunker provides text chunking for the RAG indexing pipeline.
//
// Chunk size policy: long documents needing less precision take a larger
// chunk size with moderate overlap; precise semantic search wants a
// smaller chunk size and low overlap.
package chunker

import (
	"strings"
)

// Config contains common configuration for chunkers.
type Config struct {
	// ChunkSize is the target size of each chunk in characters.
	// Default: 1000
	ChunkSize int `yaml:"chunk_size"`

	// ChunkOverlap is the number of characters shared between consecutive
	// chunks. Default: 200
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// DefaultConfig returns the default chunker configuration.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
	}
}

// DefaultSeparators returns the default separator hierarchy.
// Splits are attempted in order, from largest semantic units to smallest.
var DefaultSeparators = []string{
	"\n\n", // Paragraph break
	"\n",   // Line break
	". ",   // Sentence end
	"? ",   // Question end
	"! ",   // Exclamation end
	"; ",   // Semicolon
	", ",   // Comma
	" ",    // Space
	"",     // Character (last resort)
}

// RecursiveCharacterTextSplitter implements a recursive chunking strategy.
// It tries to split on larger separators first, then falls back to smaller
// ones, and finally hard-cuts at the character level.
type RecursiveCharacterTextSplitter struct {
	config     Config
	separators []string
}

// NewRecursiveCharacterTextSplitter creates a new recursive text splitter.
func NewRecursiveCharacterTextSplitter(cfg Config) *RecursiveCharacterTextSplitter {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultConfig().ChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = DefaultConfig().ChunkOverlap
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}

	return &RecursiveCharacterTextSplitter{
		config:     cfg,
		separators: DefaultSeparators,
	}
}

// WithSeparators sets custom separators.
func (s *RecursiveCharacterTextSplitter) WithSeparators(seps []string) *RecursiveCharacterTextSplitter {
	s.separators = seps
	return s
}

// Name returns the chunker name.
func (s *RecursiveCharacterTextSplitter) Name() string {
	return "recursive_character"
}

// Split breaks text into chunks of at most ChunkSize characters, each
// sharing ChunkOverlap characters with its predecessor (so a chunk after
// the first can reach ChunkSize+ChunkOverlap).
func (s *RecursiveCharacterTextSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	pieces := s.splitText(text, s.separators)
	return s.mergeWithOverlap(pieces)
}

// splitText recursively splits text until every piece fits in ChunkSize.
func (s *RecursiveCharacterTextSplitter) splitText(text string, separators []string) []string {
	if len(text) <= s.config.ChunkSize {
		return []string{text}
	}

	// Find the first separator that exists in the text.
	sep := ""
	var rest []string
	found := false
	for i, cand := range separators {
		if cand == "" {
			found = true
			break
		}
		if strings.Contains(text, cand) {
			sep = cand
			rest = separators[i+1:]
			found = true
			break
		}
	}

	if !found || sep == "" {
		return s.hardCut(text)
	}

	parts := strings.SplitAfter(text, sep)
	var out []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if len(part) <= s.config.ChunkSize {
			out = append(out, part)
		} else {
			out = append(out, s.splitText(part, rest)...)
		}
	}
	return out
}

// hardCut slices text into ChunkSize runs when no separator applies.
func (s *RecursiveCharacterTextSplitter) hardCut(text string) []string {
	var out []string
	for start := 0; start < len(text); start += s.config.ChunkSize {
		end := start + s.config.ChunkSize
		if end > len(text) {
			end = len(text)
		}
		out = append(out, text[start:end])
	}
	return out
}

// mergeWithOverlap greedily packs pieces into chunks of at most ChunkSize,
// then prefixes every chunk after the first with the tail of its
// predecessor.
func (s *RecursiveCharacterTextSplitter) mergeWithOverlap(pieces []string) []string {
	var packed []string
	var cur strings.Builder
	for _, piece := range pieces {
		if cur.Len() > 0 && cur.Len()+len(piece) > s.config.ChunkSize {
			packed = append(packed, cur.String())
			cur.Reset()
		}
		cur.WriteString(piece)
	}
	if cur.Len() > 0 {
		packed = append(packed, cur.String())
	}

	var chunks []string
	for _, c := range packed {
		if trimmed := strings.TrimSpace(c); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}

	if s.config.ChunkOverlap <= 0 || len(chunks) < 2 {
		return chunks
	}

	result := make([]string, len(chunks))
	result[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		overlap := s.config.ChunkOverlap
		if overlap > len(prev) {
			overlap = len(prev)
		}
		result[i] = prev[len(prev)-overlap:] + chunks[i]
	}
	return result
}
