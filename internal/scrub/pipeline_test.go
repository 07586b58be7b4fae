package scrub

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestSplitLines(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"no trailing newline", "a\nb", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"empty lines", "a\n\n\nb\n", []string{"a", "", "", "b"}},
		{"single line", "only", []string{"only"}},
		{"empty input", "", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := splitLines([]byte(tc.in))
			if len(got) != len(tc.want) {
				t.Fatalf("got %d lines %q, want %d", len(got), got, len(tc.want))
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("line %d: got %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestPlanRanges(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		fmt.Fprintf(&b, "line number %02d\n", i)
	}
	data := []byte(b.String())

	chunks := make(chan chunk, 128)
	if err := planRanges(context.Background(), data, 20, chunks); err != nil {
		t.Fatalf("planRanges failed: %v", err)
	}
	close(chunks)

	var got []chunk
	for c := range chunks {
		got = append(got, c)
	}
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}

	var rejoined []byte
	for i, c := range got {
		if c.index != i {
			t.Errorf("chunk index: got %d, want %d", c.index, i)
		}
		if i < len(got)-1 && c.data[len(c.data)-1] != '\n' {
			t.Errorf("chunk %d does not end on a line boundary", c.index)
		}
		rejoined = append(rejoined, c.data...)
	}
	if string(rejoined) != b.String() {
		t.Error("chunks do not rejoin to the original data")
	}
}

func TestPlanRangesLineBoundaries(t *testing.T) {
	data := []byte("short\na much longer line that exceeds the target\nx\n")

	chunks := make(chan chunk, 16)
	if err := planRanges(context.Background(), data, 4, chunks); err != nil {
		t.Fatalf("planRanges failed: %v", err)
	}
	close(chunks)

	total := 0
	for c := range chunks {
		lines := splitLines(c.data)
		total += len(lines)
		for _, line := range lines {
			if strings.Contains(line, "\n") {
				t.Errorf("line contains newline: %q", line)
			}
		}
	}
	if total != 3 {
		t.Errorf("total lines across chunks: got %d, want 3", total)
	}
}

func TestPlanScan(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "record %d\n", i)
	}

	chunks := make(chan chunk, 128)
	err := planScan(context.Background(), strings.NewReader(b.String()), "test", 30, chunks)
	if err != nil {
		t.Fatalf("planScan failed: %v", err)
	}
	close(chunks)

	var lines []string
	index := 0
	for c := range chunks {
		if c.index != index {
			t.Errorf("chunk index: got %d, want %d", c.index, index)
		}
		if len(c.lines) == 0 {
			t.Error("empty chunk emitted")
		}
		lines = append(lines, c.lines...)
		index++
	}

	if index < 2 {
		t.Fatalf("expected multiple chunks, got %d", index)
	}
	if len(lines) != 40 {
		t.Fatalf("total lines: got %d, want 40", len(lines))
	}
	for i, line := range lines {
		if want := fmt.Sprintf("record %d", i); line != want {
			t.Fatalf("line %d: got %q, want %q", i, line, want)
		}
	}
}

func TestTargetChunkBytes(t *testing.T) {
	e := &Engine{workers: 4}

	t.Run("floor for small inputs", func(t *testing.T) {
		if got := e.targetChunkBytes(1000); got != minChunkBytes {
			t.Errorf("got %d, want floor %d", got, minChunkBytes)
		}
	})

	t.Run("cap for huge inputs", func(t *testing.T) {
		if got := e.targetChunkBytes(10 << 30); got != maxChunkBytes {
			t.Errorf("got %d, want cap %d", got, maxChunkBytes)
		}
	})

	t.Run("proportional in between", func(t *testing.T) {
		size := int64(64 << 20)
		want := int(size) / (4 * chunksPerWorker)
		if got := e.targetChunkBytes(size); got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	})

	t.Run("explicit override", func(t *testing.T) {
		e := &Engine{workers: 4, chunkBytes: 123}
		if got := e.targetChunkBytes(1 << 30); got != 123 {
			t.Errorf("got %d, want 123", got)
		}
	})
}
