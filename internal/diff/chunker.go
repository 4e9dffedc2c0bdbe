package diff

import (
	"strings"
	"unicode/utf8"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
)

// DefaultMaxChars is the chunk budget, roughly 200 tokens.
const DefaultMaxChars = 800

// Chunk is one indexed slice of the diff text.
type Chunk struct {
	Index  int
	Text   string
	Total  int
	IsLast bool
}

// Chunker packs diff text into chunks of at most MaxChars characters without
// splitting a line. It holds no state between calls.
type Chunker struct {
	MaxChars int
}

// NewChunker creates a chunker; a non-positive budget means DefaultMaxChars.
func NewChunker(maxChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Chunker{MaxChars: maxChars}
}

// All returns every chunk of text in order. Joining them with "\n" gives
// back text. A line longer than the budget forms a chunk of its own.
func (c *Chunker) All(text string) []string {
	if text == "" {
		return nil
	}

	var (
		chunks  []string
		acc     strings.Builder
		accLen  int
		started bool
	)
	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if started && accLen+lineLen+1 > c.MaxChars {
			chunks = append(chunks, acc.String())
			acc.Reset()
			acc.WriteString(line)
			accLen = lineLen
			continue
		}
		if started {
			acc.WriteByte('\n')
			accLen++
		}
		acc.WriteString(line)
		accLen += lineLen
		started = true
	}
	if started {
		chunks = append(chunks, acc.String())
	}
	return chunks
}

// Chunk returns chunk index of text. An index past the end is clamped to the
// last chunk; a negative index is a range error. Empty text yields an empty
// terminal chunk with Total 0.
func (c *Chunker) Chunk(text string, index int) (Chunk, error) {
	if index < 0 {
		return Chunk{}, internalerrors.Range("diff.chunk", "chunk index %d must not be negative", index)
	}

	chunks := c.All(text)
	total := len(chunks)
	if total == 0 {
		return Chunk{Index: 0, Text: "", Total: 0, IsLast: true}, nil
	}
	if index >= total {
		index = total - 1
	}

	return Chunk{
		Index:  index,
		Text:   chunks[index],
		Total:  total,
		IsLast: index >= total-1,
	}, nil
}
