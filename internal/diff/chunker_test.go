package diff

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	internalerrors "github.com/olegiv/bugfixer-ai-go/internal/errors"
)

// sampleDiff builds a rendered diff of n files with 15 changed lines each.
func sampleDiff(n int) string {
	var patches []FilePatch
	for i := 0; i < n; i++ {
		var lines []string
		for j := 0; j < 15; j++ {
			lines = append(lines, fmt.Sprintf("+    private final UserRepository repository%d_%d;", i, j))
		}
		patches = append(patches, FilePatch{Filename: fmt.Sprintf("Service%d.java", i), Lines: lines})
	}
	return Render(patches)
}

func TestChunkEmptyDiff(t *testing.T) {
	c := NewChunker(0)

	got, err := c.Chunk("", 0)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	want := Chunk{Index: 0, Text: "", Total: 0, IsLast: true}
	if got != want {
		t.Errorf("Chunk(\"\", 0) = %+v, want %+v", got, want)
	}

	got, err = c.Chunk("", 5)
	if err != nil || got != want {
		t.Errorf("Chunk(\"\", 5) = %+v, %v; want %+v", got, err, want)
	}
}

func TestChunkSingle(t *testing.T) {
	c := NewChunker(800)
	text := "[App.java]\n+import x;\n-import y;"

	got, err := c.Chunk(text, 0)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	if got.Text != text || got.Total != 1 || !got.IsLast || got.Index != 0 {
		t.Errorf("Chunk() = %+v", got)
	}
}

func TestChunkReconstruction(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		budget int
	}{
		{"several files", sampleDiff(6), 800},
		{"tight budget", sampleDiff(3), 100},
		{"oversized line", "[a]\n+" + strings.Repeat("x", 1200) + "\n-y", 800},
		{"blank lines", "a\n\n\nb\n", 3},
		{"multibyte", strings.Repeat("+é€漢字\n", 200), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := NewChunker(tt.budget).All(tt.text)
			if joined := strings.Join(chunks, "\n"); joined != tt.text {
				t.Errorf("rejoined chunks differ from input:\n got %q\nwant %q", joined, tt.text)
			}
		})
	}
}

func TestChunkBudget(t *testing.T) {
	text := sampleDiff(8) + "\n+" + strings.Repeat("z", 900) + "\n+tail"
	c := NewChunker(800)

	for i, chunk := range c.All(text) {
		if n := utf8.RuneCountInString(chunk); n > 800 {
			if strings.Contains(chunk, "\n") {
				t.Errorf("chunk %d has %d chars and more than one line", i, n)
			}
		}
	}
}

func TestChunkOversizedLineIsOwnChunk(t *testing.T) {
	long := "+" + strings.Repeat("x", 900)
	chunks := NewChunker(800).All("[a]\n" + long + "\n-b")

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %q", len(chunks), chunks)
	}
	if chunks[0] != "[a]" || chunks[1] != long || chunks[2] != "-b" {
		t.Errorf("unexpected chunks: %q", chunks)
	}
}

func TestChunkPackingBoundary(t *testing.T) {
	// 10 chars + "\n" + 9 chars = 20 fits a 20 budget; one more char does not.
	a := strings.Repeat("a", 10)
	fits := NewChunker(20).All(a + "\n" + strings.Repeat("b", 9))
	if len(fits) != 1 {
		t.Errorf("expected exact fit in one chunk, got %q", fits)
	}
	spills := NewChunker(20).All(a + "\n" + strings.Repeat("b", 10))
	if len(spills) != 2 {
		t.Errorf("expected two chunks, got %q", spills)
	}
}

func TestChunkIdempotent(t *testing.T) {
	text := sampleDiff(5)
	c := NewChunker(800)

	first, err := c.Chunk(text, 1)
	if err != nil {
		t.Fatalf("Chunk() error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := NewChunker(800).Chunk(text, 1)
		if err != nil || again != first {
			t.Fatalf("call %d: Chunk() = %+v, %v; want %+v", i, again, err, first)
		}
	}
}

func TestChunkClamping(t *testing.T) {
	text := sampleDiff(5)
	c := NewChunker(800)

	last, err := c.Chunk(text, 0)
	if err != nil {
		t.Fatal(err)
	}
	total := last.Total
	if total < 2 {
		t.Fatalf("expected several chunks, got %d", total)
	}

	want, _ := c.Chunk(text, total-1)
	for _, idx := range []int{total, total + 1, 1000} {
		got, err := c.Chunk(text, idx)
		if err != nil {
			t.Fatalf("Chunk(%d) error: %v", idx, err)
		}
		if got != want {
			t.Errorf("Chunk(%d) = %+v, want %+v", idx, got, want)
		}
	}
	if !want.IsLast || want.Index != total-1 {
		t.Errorf("last chunk = %+v", want)
	}

	first, _ := c.Chunk(text, 0)
	if first.IsLast {
		t.Error("first chunk of several should not be last")
	}
}

func TestChunkNegativeIndex(t *testing.T) {
	_, err := NewChunker(800).Chunk("[a]\n+b", -1)
	if internalerrors.KindOf(err) != internalerrors.KindRange {
		t.Fatalf("kind = %v, want range", internalerrors.KindOf(err))
	}
	if internalerrors.HTTPStatus(err) != 400 {
		t.Errorf("status = %d, want 400", internalerrors.HTTPStatus(err))
	}
}
