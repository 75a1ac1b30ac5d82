package ingest

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/inktime/support-backend/internal/platform/logger"
)

// ErrChunkingExhausted is returned when every splitting strategy produced
// zero chunks for a non-empty input.
var ErrChunkingExhausted = errors.New("all chunking strategies exhausted")

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk is one overlapping window of a source segment's text.
type Chunk struct {
	Text     string
	Source   string
	Position int
}

// Chunker splits text segments into overlapping fixed-size chunks. Splitting
// runs an ordered cascade of strategies, most structure-aware first; the
// first one to yield at least one chunk wins. Oddly formatted source text
// (no blank lines, no newlines at all) defeats single fixed strategies,
// which is the whole reason the cascade exists.
type Chunker struct {
	log        *logger.Logger
	size       int
	overlap    int
	strategies []splitStrategy
}

type splitStrategy struct {
	name  string
	split func(c *Chunker, text string) []string
}

func NewChunker(log *logger.Logger, size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	c := &Chunker{
		log:     log.With("service", "Chunker"),
		size:    size,
		overlap: overlap,
	}
	c.strategies = []splitStrategy{
		{name: "recursive", split: func(c *Chunker, text string) []string {
			return c.splitRecursive(text, []string{"\n\n", "\n", " ", ""})
		}},
		{name: "paragraph", split: func(c *Chunker, text string) []string {
			return c.splitBySeparator(text, "\n\n")
		}},
		{name: "line", split: func(c *Chunker, text string) []string {
			return c.splitBySeparator(text, "\n")
		}},
		{name: "word", split: func(c *Chunker, text string) []string {
			return c.splitBySeparator(text, " ")
		}},
	}
	return c
}

// ChunkSegments validates and splits each segment, renumbering chunk
// positions per source so a document's chunks stay ordered. Invalid segments
// (empty or whitespace-only) are dropped with a warning, not an error.
func (c *Chunker) ChunkSegments(segments []Segment) ([]Chunk, error) {
	positions := make(map[string]int)
	var out []Chunk
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			c.log.Warn("Dropping empty segment", "source", seg.Source, "position", seg.Position)
			continue
		}
		pieces, err := c.split(text)
		if err != nil {
			return nil, err
		}
		for _, piece := range pieces {
			out = append(out, Chunk{
				Text:     piece,
				Source:   seg.Source,
				Position: positions[seg.Source],
			})
			positions[seg.Source]++
		}
	}
	return out, nil
}

func (c *Chunker) split(text string) ([]string, error) {
	for _, strategy := range c.strategies {
		pieces := clean(strategy.split(c, text))
		if len(pieces) > 0 {
			return pieces, nil
		}
		c.log.Warn("Chunking strategy yielded no chunks, trying next", "strategy", strategy.name)
	}
	return nil, ErrChunkingExhausted
}

// splitRecursive splits on the first separator present in the text, then
// recursively re-splits any piece still over the chunk size using the
// remaining separators. The empty-string separator is the terminal case and
// cuts at rune boundaries.
func (c *Chunker) splitRecursive(text string, separators []string) []string {
	if len(separators) == 0 {
		return []string{text}
	}
	sep := separators[0]
	rest := separators[1:]
	for _, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			break
		}
		rest = rest[1:]
	}

	var parts []string
	if sep == "" {
		parts = splitRunes(text, c.size)
	} else {
		parts = strings.Split(text, sep)
	}

	var final []string
	var pending []string
	flush := func() {
		if len(pending) == 0 {
			return
		}
		final = append(final, c.mergeSplits(pending, sep)...)
		pending = nil
	}
	for _, part := range parts {
		if utf8.RuneCountInString(part) <= c.size {
			pending = append(pending, part)
			continue
		}
		flush()
		final = append(final, c.splitRecursive(part, rest)...)
	}
	flush()
	return final
}

// splitBySeparator is a flat single-separator strategy: split, then merge
// back into windows. Oversized atoms are kept whole rather than lost.
func (c *Chunker) splitBySeparator(text string, sep string) []string {
	if !strings.Contains(text, sep) {
		return nil
	}
	return c.mergeSplits(strings.Split(text, sep), sep)
}

// mergeSplits packs consecutive parts into chunks of at most size runes,
// carrying overlap runes of trailing context into each next chunk.
func (c *Chunker) mergeSplits(parts []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var chunks []string
	var window []string
	windowLen := 0

	emit := func() {
		if len(window) == 0 {
			return
		}
		joined := strings.TrimSpace(strings.Join(window, sep))
		if joined != "" {
			chunks = append(chunks, joined)
		}
	}

	for _, part := range parts {
		partLen := utf8.RuneCountInString(part)
		if windowLen > 0 && windowLen+sepLen+partLen > c.size {
			emit()
			// Retain trailing parts as overlap for the next window.
			for windowLen > c.overlap || (len(window) > 0 && windowLen+sepLen+partLen > c.size) {
				windowLen -= utf8.RuneCountInString(window[0]) + sepLen
				window = window[1:]
			}
			if len(window) == 0 {
				windowLen = 0
			}
		}
		window = append(window, part)
		if windowLen > 0 {
			windowLen += sepLen
		}
		windowLen += partLen
	}
	emit()
	return chunks
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func clean(pieces []string) []string {
	out := pieces[:0]
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
