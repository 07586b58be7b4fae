package scrub

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/sentinelkit/logscrub/internal/logger"
	"github.com/sentinelkit/logscrub/internal/rules"
)

func testSet(t *testing.T) *rules.Set {
	t.Helper()
	set, err := rules.Compile([]rules.Rule{
		{Name: "email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Replacement: "[EMAIL]"},
		{Name: "ipv4", Pattern: `\b(?:\d{1,3}\.){3}\d{1,3}\b`, Replacement: "[IP]"},
	})
	if err != nil {
		t.Fatalf("failed to compile test rules: %v", err)
	}
	return set
}

func writeInput(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.log")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write input: %v", err)
	}
	return path
}

// readOutput returns the output lines after checking the file ends with a
// newline. An empty file yields nil.
func readOutput(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if len(data) == 0 {
		return nil
	}
	if data[len(data)-1] != '\n' {
		t.Fatalf("output does not end with a newline")
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestText(t *testing.T) {
	set := testSet(t)
	got := Text(set, "Contact us at support@example.com for help")
	want := "Contact us at [EMAIL] for help"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFileBasic(t *testing.T) {
	input := writeInput(t, []byte("alice@corp.com did a thing\nnothing here\nsession from 192.168.0.9\n"))
	output := filepath.Join(t.TempDir(), "out.log")

	engine := New(testSet(t), Config{Workers: 2}, logger.NewNop())
	outcome, err := engine.File(context.Background(), input, output)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}

	lines := readOutput(t, output)
	want := []string{"[EMAIL] did a thing", "nothing here", "session from [IP]"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d", len(lines), len(want))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}

	if outcome.Mode != ModeParallel {
		t.Errorf("mode: got %q", outcome.Mode)
	}
	if outcome.LinesProcessed != 3 {
		t.Errorf("lines processed: got %d, want 3", outcome.LinesProcessed)
	}
	data, _ := os.ReadFile(output)
	if outcome.BytesWritten != int64(len(data)) {
		t.Errorf("bytes written: got %d, want %d", outcome.BytesWritten, len(data))
	}
	if outcome.Chunks < 1 {
		t.Errorf("chunks: got %d", outcome.Chunks)
	}
	if outcome.Duration <= 0 {
		t.Errorf("duration not recorded")
	}
}

func TestFileLineCountInvariant(t *testing.T) {
	var buf bytes.Buffer
	const n = 10000
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "worker %d reported email user%d@test.org status ok\n", i, i)
	}
	input := writeInput(t, buf.Bytes())
	output := filepath.Join(t.TempDir(), "out.log")

	engine := New(testSet(t), Config{Workers: 4, ChunkBytes: 4096}, logger.NewNop())
	outcome, err := engine.File(context.Background(), input, output)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}

	if outcome.LinesProcessed != n {
		t.Errorf("lines processed: got %d, want %d", outcome.LinesProcessed, n)
	}
	if got := len(readOutput(t, output)); got != n {
		t.Errorf("output lines: got %d, want %d", got, n)
	}
	if outcome.Chunks < 2 {
		t.Errorf("expected multiple chunks, got %d", outcome.Chunks)
	}
}

func TestFileOrderWithTinyChunks(t *testing.T) {
	var buf bytes.Buffer
	const n = 2000
	for i := 0; i < n; i++ {
		fmt.Fprintf(&buf, "entry %04d from 10.0.0.1\n", i)
	}
	input := writeInput(t, buf.Bytes())
	output := filepath.Join(t.TempDir(), "out.log")

	// One line per chunk and many workers makes out-of-order completion
	// all but certain; output order must still match input order.
	engine := New(testSet(t), Config{Workers: 8, ChunkBytes: 1}, logger.NewNop())
	outcome, err := engine.File(context.Background(), input, output)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}

	if outcome.Chunks != n {
		t.Errorf("chunks: got %d, want %d", outcome.Chunks, n)
	}
	lines := readOutput(t, output)
	if len(lines) != n {
		t.Fatalf("output lines: got %d, want %d", len(lines), n)
	}
	for i, line := range lines {
		want := fmt.Sprintf("entry %04d from [IP]", i)
		if line != want {
			t.Fatalf("line %d: got %q, want %q", i, line, want)
		}
	}
}

func TestFileEmptyInput(t *testing.T) {
	input := writeInput(t, nil)
	output := filepath.Join(t.TempDir(), "out.log")

	engine := New(testSet(t), Config{}, logger.NewNop())
	outcome, err := engine.File(context.Background(), input, output)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}

	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("expected empty output, got %d bytes", info.Size())
	}
	if outcome.LinesProcessed != 0 || outcome.BytesWritten != 0 || outcome.Chunks != 0 {
		t.Errorf("expected zero outcome, got %+v", outcome)
	}
}

func TestFileMissingInput(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "out.log")

	engine := New(testSet(t), Config{}, logger.NewNop())
	_, err := engine.File(context.Background(), filepath.Join(dir, "missing.log"), output)
	if err == nil {
		t.Fatal("expected error for missing input")
	}

	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected *InputError, got %T", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped os.ErrNotExist, got %v", err)
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Error("output file should not have been created")
	}
}

func TestFileOutputCreateFails(t *testing.T) {
	input := writeInput(t, []byte("one line\n"))
	output := filepath.Join(t.TempDir(), "no-such-dir", "out.log")

	engine := New(testSet(t), Config{}, logger.NewNop())
	_, err := engine.File(context.Background(), input, output)
	if err == nil {
		t.Fatal("expected error for unwritable output")
	}

	var outputErr *OutputError
	if !errors.As(err, &outputErr) {
		t.Fatalf("expected *OutputError, got %T", err)
	}
}

func TestFileNewlineHandling(t *testing.T) {
	engine := New(testSet(t), Config{}, logger.NewNop())

	t.Run("missing final newline is added", func(t *testing.T) {
		input := writeInput(t, []byte("user@x.io\nplain tail"))
		output := filepath.Join(t.TempDir(), "out.log")
		outcome, err := engine.File(context.Background(), input, output)
		if err != nil {
			t.Fatalf("File failed: %v", err)
		}
		if outcome.LinesProcessed != 2 {
			t.Errorf("lines: got %d, want 2", outcome.LinesProcessed)
		}
		lines := readOutput(t, output)
		if len(lines) != 2 || lines[0] != "[EMAIL]" || lines[1] != "plain tail" {
			t.Errorf("unexpected output lines: %q", lines)
		}
	})

	t.Run("crlf normalized", func(t *testing.T) {
		input := writeInput(t, []byte("first\r\nuser@x.io\r\n"))
		output := filepath.Join(t.TempDir(), "out.log")
		if _, err := engine.File(context.Background(), input, output); err != nil {
			t.Fatalf("File failed: %v", err)
		}
		data, _ := os.ReadFile(output)
		if string(data) != "first\n[EMAIL]\n" {
			t.Errorf("unexpected output: %q", data)
		}
	})
}

func TestFileCancelledContext(t *testing.T) {
	input := writeInput(t, []byte("a\nb\nc\n"))
	output := filepath.Join(t.TempDir(), "out.log")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := New(testSet(t), Config{}, logger.NewNop())
	if _, err := engine.File(ctx, input, output); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	if _, err := os.Stat(output); !errors.Is(err, os.ErrNotExist) {
		t.Error("partial output should have been removed")
	}
}

func parityInput(t *testing.T) string {
	t.Helper()
	var b strings.Builder
	for i := 0; i < 500; i++ {
		switch i % 4 {
		case 0:
			fmt.Fprintf(&b, "user%d@example.com logged in\n", i)
		case 1:
			fmt.Fprintf(&b, "request from 10.1.%d.%d denied\n", i%200, (i*7)%200)
		case 2:
			fmt.Fprintf(&b, "日本語テスト line %d\n", i)
		case 3:
			b.WriteString("\n")
		}
	}
	b.WriteString("tail without newline")
	return writeInput(t, []byte(b.String()))
}

func TestFileMmapParity(t *testing.T) {
	input := parityInput(t)
	dir := t.TempDir()
	bufferedOut := filepath.Join(dir, "buffered.log")
	mmapOut := filepath.Join(dir, "mmap.log")

	engine := New(testSet(t), Config{Workers: 4, ChunkBytes: 64}, logger.NewNop())

	bufferedOutcome, err := engine.File(context.Background(), input, bufferedOut)
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	mmapOutcome, err := engine.FileMmap(context.Background(), input, mmapOut)
	if err != nil {
		t.Fatalf("FileMmap failed: %v", err)
	}

	a, _ := os.ReadFile(bufferedOut)
	b, _ := os.ReadFile(mmapOut)
	if !bytes.Equal(a, b) {
		t.Error("buffered and mmap outputs differ")
	}
	if bufferedOutcome.LinesProcessed != mmapOutcome.LinesProcessed {
		t.Errorf("line counts differ: %d vs %d",
			bufferedOutcome.LinesProcessed, mmapOutcome.LinesProcessed)
	}
	if bufferedOutcome.LinesProcessed != 501 {
		t.Errorf("lines: got %d, want 501", bufferedOutcome.LinesProcessed)
	}
	if mmapOutcome.Mode != ModeMmap {
		t.Errorf("mode: got %q", mmapOutcome.Mode)
	}
}

func TestFileMmapEmptyInput(t *testing.T) {
	input := writeInput(t, nil)
	output := filepath.Join(t.TempDir(), "out.log")

	engine := New(testSet(t), Config{}, logger.NewNop())
	outcome, err := engine.FileMmap(context.Background(), input, output)
	if err != nil {
		t.Fatalf("FileMmap failed: %v", err)
	}

	info, err := os.Stat(output)
	if err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	if info.Size() != 0 || outcome.LinesProcessed != 0 || outcome.Chunks != 0 {
		t.Errorf("expected empty output and zero outcome, got %+v", outcome)
	}
}

func TestFileMmapMissingInput(t *testing.T) {
	dir := t.TempDir()
	engine := New(testSet(t), Config{}, logger.NewNop())
	_, err := engine.FileMmap(context.Background(), filepath.Join(dir, "missing.log"), filepath.Join(dir, "out.log"))

	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected *InputError, got %v", err)
	}
}

func TestFileInvalidBytes(t *testing.T) {
	content := []byte("clean line\nbroken \xff\xfe segment\nfinal line\n")

	run := func(t *testing.T, mode string) {
		input := writeInput(t, content)
		output := filepath.Join(t.TempDir(), "out.log")
		engine := New(testSet(t), Config{Workers: 2}, logger.NewNop())

		var (
			outcome *Outcome
			err     error
		)
		if mode == ModeMmap {
			outcome, err = engine.FileMmap(context.Background(), input, output)
		} else {
			outcome, err = engine.File(context.Background(), input, output)
		}
		if err != nil {
			t.Fatalf("scrub failed: %v", err)
		}

		if outcome.LinesProcessed != 3 {
			t.Errorf("lines: got %d, want 3", outcome.LinesProcessed)
		}
		if outcome.RepairedLines != 1 {
			t.Errorf("repaired lines: got %d, want 1", outcome.RepairedLines)
		}

		lines := readOutput(t, output)
		if len(lines) != 3 {
			t.Fatalf("output lines: got %d, want 3", len(lines))
		}
		if !strings.Contains(lines[1], "�") {
			t.Errorf("damaged line missing replacement marker: %q", lines[1])
		}
		for i, line := range lines {
			if !utf8.ValidString(line) {
				t.Errorf("line %d is not valid UTF-8", i)
			}
		}
		if lines[0] != "clean line" || lines[2] != "final line" {
			t.Errorf("intact lines were altered: %q", lines)
		}
	}

	t.Run("buffered", func(t *testing.T) { run(t, ModeParallel) })
	t.Run("mmap", func(t *testing.T) { run(t, ModeMmap) })
}

func benchmarkInput(b *testing.B, lines int) string {
	b.Helper()
	var buf bytes.Buffer
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&buf, "%d auth user%d@service.net from 172.16.%d.%d card 4532-1234-5678-9012\n",
			i, i, i%200, (i*3)%200)
	}
	path := filepath.Join(b.TempDir(), "bench.log")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		b.Fatalf("failed to write input: %v", err)
	}
	return path
}

func BenchmarkFileParallel(b *testing.B) {
	input := benchmarkInput(b, 5000)
	output := filepath.Join(b.TempDir(), "out.log")
	set, err := rules.Compile(rules.Defaults())
	if err != nil {
		b.Fatal(err)
	}
	engine := New(set, Config{}, logger.NewNop())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.File(context.Background(), input, output); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFileMmap(b *testing.B) {
	input := benchmarkInput(b, 5000)
	output := filepath.Join(b.TempDir(), "out.log")
	set, err := rules.Compile(rules.Defaults())
	if err != nil {
		b.Fatal(err)
	}
	engine := New(set, Config{}, logger.NewNop())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.FileMmap(context.Background(), input, output); err != nil {
			b.Fatal(err)
		}
	}
}
