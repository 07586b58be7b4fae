package scrub

import (
	"fmt"
	"time"
)

// Processing modes reported in outcomes, logs and audit records.
const (
	ModeParallel = "parallel"
	ModeMmap     = "mmap"
)

const (
	// Chunk sizing: chunk count grows with input size per worker, with a
	// floor so small inputs do not degenerate into per-line chunks.
	chunksPerWorker = 8
	minChunkBytes   = 256 << 10
	maxChunkBytes   = 4 << 20

	// Scanner limits for the buffered reader.
	scanBufBytes = 64 << 10
	maxLineBytes = 64 << 20

	writerBufBytes = 1 << 20

	// windowPerWorker caps chunks between pickup and flush. The reorder
	// buffer holds at most workers*windowPerWorker chunks even when one
	// chunk transforms far slower than its neighbors.
	windowPerWorker = 2
)

// Outcome summarizes one completed file scrub.
type Outcome struct {
	Mode           string        `json:"mode"`
	LinesProcessed int64         `json:"lines_processed"`
	BytesWritten   int64         `json:"bytes_written"`
	RepairedLines  int64         `json:"repaired_lines,omitempty"`
	Chunks         int           `json:"chunks"`
	Workers        int           `json:"workers"`
	Duration       time.Duration `json:"duration"`
}

// ThroughputMBps returns output megabytes written per second.
func (o *Outcome) ThroughputMBps() float64 {
	if o.Duration <= 0 {
		return 0
	}
	return float64(o.BytesWritten) / (1 << 20) / o.Duration.Seconds()
}

// LinesPerSecond returns processed lines per second.
func (o *Outcome) LinesPerSecond() float64 {
	if o.Duration <= 0 {
		return 0
	}
	return float64(o.LinesProcessed) / o.Duration.Seconds()
}

// InputError wraps failures to open, stat, map or read the input file.
type InputError struct {
	Path string
	Err  error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("failed to access input file %s: %v", e.Path, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// OutputError wraps failures to create, write or flush the output file.
type OutputError struct {
	Path string
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("failed to write output file %s: %v", e.Path, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// chunk is one line-aligned unit of work. Exactly one of lines or data is
// set: the buffered planner emits pre-split lines, the mmap planner emits a
// byte range that the worker splits itself.
type chunk struct {
	index int
	lines []string
	data  []byte
}

type chunkResult struct {
	index    int
	lines    []string
	repaired int64
}

type tally struct {
	lines    int64
	bytes    int64
	repaired int64
	chunks   int
}
