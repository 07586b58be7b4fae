package scrub

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type producer func(context.Context, chan<- chunk) error

func produceNothing(ctx context.Context, chunks chan<- chunk) error { return nil }

// planScan reads the input once, line by line, and emits chunks of whole
// lines once the byte target is reached. Lines never straddle chunks.
func planScan(ctx context.Context, in io.Reader, inputPath string, target int, chunks chan<- chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, scanBufBytes), maxLineBytes)

	cur := chunk{index: 0}
	size := 0
	for scanner.Scan() {
		line := scanner.Text()
		cur.lines = append(cur.lines, line)
		size += len(line) + 1
		if size >= target {
			select {
			case chunks <- cur:
			case <-ctx.Done():
				return ctx.Err()
			}
			cur = chunk{index: cur.index + 1}
			size = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return &InputError{Path: inputPath, Err: err}
	}

	if len(cur.lines) > 0 {
		select {
		case chunks <- cur:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// planRanges cuts the mapped bytes into ranges that end on a newline. The
// worker splits its range into lines, so planning stays a cheap scan for
// boundaries.
func planRanges(ctx context.Context, data []byte, target int, chunks chan<- chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	index := 0
	for start := 0; start < len(data); {
		end := start + target
		if end >= len(data) {
			end = len(data)
		} else if i := bytes.IndexByte(data[end:], '\n'); i >= 0 {
			end += i + 1
		} else {
			end = len(data)
		}

		select {
		case chunks <- chunk{index: index, data: data[start:end]}:
		case <-ctx.Done():
			return ctx.Err()
		}
		index++
		start = end
	}
	return nil
}

// splitLines splits a byte range into lines, dropping line terminators.
// A final fragment without a newline still counts as a line.
func splitLines(data []byte) []string {
	lines := make([]string, 0, bytes.Count(data, []byte{'\n'})+1)
	for len(data) > 0 {
		var line []byte
		if i := bytes.IndexByte(data, '\n'); i >= 0 {
			line = data[:i]
			data = data[i+1:]
		} else {
			line = data
			data = nil
		}
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
		lines = append(lines, string(line))
	}
	return lines
}

// transformChunk applies the rule set to every line of one chunk. Lines
// with invalid byte sequences are repaired with the Unicode replacement
// character first, so damaged input still yields one output line per input
// line. Transformation itself cannot fail.
func (e *Engine) transformChunk(c chunk) chunkResult {
	lines := c.lines
	if c.data != nil {
		lines = splitLines(c.data)
	}

	out := make([]string, len(lines))
	var repaired int64
	for i, line := range lines {
		if !utf8.ValidString(line) {
			line = strings.ToValidUTF8(line, "�")
			repaired++
			e.logger.Debug("repaired invalid byte sequence", zap.Int("chunk", c.index))
		}
		out[i] = e.set.Apply(line)
	}
	return chunkResult{index: c.index, lines: out, repaired: repaired}
}

// runPipeline owns the scatter/gather protocol: one producer goroutine
// plans chunks, a fixed pool transforms them, and the calling goroutine
// collects results through a reorder buffer, flushing strictly in
// ascending chunk order. A token window between pickup and flush keeps
// the buffer bounded by in-flight chunks rather than the file. The
// first error cancels the group; completed results are drained so no
// goroutine is left blocked.
func (e *Engine) runPipeline(ctx context.Context, produce producer, out *os.File, outputPath string) (tally, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	chunks := make(chan chunk, e.workers)
	g.Go(func() error {
		defer close(chunks)
		return produce(gctx, chunks)
	})

	// A token is taken before a chunk is picked up and returned when the
	// chunk flushes, so the reorder buffer stays bounded. Pickups happen
	// in chunk order, so the next chunk to flush always holds a token and
	// keeps making progress.
	window := make(chan struct{}, e.workers*windowPerWorker)

	results := make(chan chunkResult, e.workers)
	for i := 0; i < e.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case window <- struct{}{}:
				case <-gctx.Done():
					return gctx.Err()
				}
				c, ok := <-chunks
				if !ok {
					<-window
					return nil
				}
				select {
				case results <- e.transformChunk(c):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}
	go func() {
		g.Wait()
		close(results)
	}()

	w := bufio.NewWriterSize(out, writerBufBytes)
	var (
		t        tally
		writeErr error
	)
	pending := make(map[int][]string)
	next := 0

	for res := range results {
		if writeErr != nil {
			continue // drain
		}
		t.chunks++
		t.repaired += res.repaired
		pending[res.index] = res.lines

		for writeErr == nil {
			lines, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)

			for _, line := range lines {
				n, err := w.WriteString(line)
				if err == nil {
					err = w.WriteByte('\n')
				}
				if err != nil {
					writeErr = &OutputError{Path: outputPath, Err: err}
					cancel()
					break
				}
				t.bytes += int64(n) + 1
				t.lines++
			}
			if writeErr == nil {
				next++
				<-window
			}
		}
	}

	if err := g.Wait(); err != nil {
		if writeErr != nil {
			return t, writeErr
		}
		return t, err
	}
	if writeErr != nil {
		return t, writeErr
	}
	if err := w.Flush(); err != nil {
		return t, &OutputError{Path: outputPath, Err: err}
	}
	return t, nil
}
