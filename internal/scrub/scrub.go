package scrub

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/edsrzf/mmap-go"
	"go.uber.org/zap"

	"github.com/sentinelkit/logscrub/internal/logger"
	"github.com/sentinelkit/logscrub/internal/rules"
)

// Text applies the rule set to text in memory and returns the result. The
// whole string is transformed at once; newlines are ordinary characters
// here. Rule compilation errors surface at rules.Compile, before any text
// is touched.
func Text(set *rules.Set, text string) string {
	return set.Apply(text)
}

// Config contains engine tuning knobs.
type Config struct {
	// Workers is the transform pool size. Defaults to runtime.NumCPU().
	Workers int `yaml:"workers" mapstructure:"workers"`
	// ChunkBytes overrides the target chunk size. When zero the engine
	// derives it from the input size and worker count.
	ChunkBytes int `yaml:"chunk_bytes" mapstructure:"chunk_bytes"`
}

// Engine scrubs files through a worker pool over line-aligned chunks.
// Output order always matches input order. An Engine is cheap, holds no
// per-call state and is safe for concurrent use.
type Engine struct {
	set        *rules.Set
	workers    int
	chunkBytes int
	logger     *logger.Logger
}

// New creates an engine over a compiled rule set.
func New(set *rules.Set, cfg Config, log *logger.Logger) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{
		set:        set,
		workers:    workers,
		chunkBytes: cfg.ChunkBytes,
		logger:     log.WithComponent("scrub"),
	}
}

// File scrubs inputPath into outputPath using buffered reads. The input is
// read once, line by line; every input line yields exactly one output line,
// in input order. On failure the partial output file is removed: a failed
// run leaves no output artifact.
func (e *Engine) File(ctx context.Context, inputPath, outputPath string) (*Outcome, error) {
	start := time.Now()

	in, err := os.Open(inputPath)
	if err != nil {
		return nil, &InputError{Path: inputPath, Err: err}
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return nil, &InputError{Path: inputPath, Err: err}
	}

	target := e.targetChunkBytes(info.Size())
	produce := func(ctx context.Context, chunks chan<- chunk) error {
		return planScan(ctx, in, inputPath, target, chunks)
	}

	return e.scrubTo(ctx, outputPath, ModeParallel, produce, start)
}

// FileMmap scrubs inputPath into outputPath over a memory-mapped input.
// Same contract and guarantees as File; only input acquisition differs.
// A zero-length input is never mapped and produces an empty output file.
func (e *Engine) FileMmap(ctx context.Context, inputPath, outputPath string) (*Outcome, error) {
	start := time.Now()

	in, err := os.Open(inputPath)
	if err != nil {
		return nil, &InputError{Path: inputPath, Err: err}
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return nil, &InputError{Path: inputPath, Err: err}
	}

	if info.Size() == 0 {
		return e.scrubTo(ctx, outputPath, ModeMmap, produceNothing, start)
	}

	data, err := mmap.Map(in, mmap.RDONLY, 0)
	if err != nil {
		return nil, &InputError{Path: inputPath, Err: err}
	}
	defer data.Unmap()

	target := e.targetChunkBytes(info.Size())
	produce := func(ctx context.Context, chunks chan<- chunk) error {
		return planRanges(ctx, data, target, chunks)
	}

	return e.scrubTo(ctx, outputPath, ModeMmap, produce, start)
}

// scrubTo creates the output file, runs the chunk pipeline into it and
// finalizes the outcome. Any failure removes the output file.
func (e *Engine) scrubTo(ctx context.Context, outputPath, mode string, produce producer, start time.Time) (*Outcome, error) {
	out, err := os.Create(outputPath)
	if err != nil {
		return nil, &OutputError{Path: outputPath, Err: err}
	}

	t, err := e.runPipeline(ctx, produce, out, outputPath)
	if err == nil {
		err = out.Close()
		if err != nil {
			err = &OutputError{Path: outputPath, Err: err}
		}
	} else {
		out.Close()
	}
	if err != nil {
		os.Remove(outputPath)
		return nil, err
	}

	outcome := &Outcome{
		Mode:           mode,
		LinesProcessed: t.lines,
		BytesWritten:   t.bytes,
		RepairedLines:  t.repaired,
		Chunks:         t.chunks,
		Workers:        e.workers,
		Duration:       time.Since(start),
	}

	e.logger.Info("file scrub complete",
		zap.String("mode", mode),
		zap.String("output", outputPath),
		zap.Int64("lines", outcome.LinesProcessed),
		zap.Int64("bytes_written", outcome.BytesWritten),
		zap.Int("chunks", outcome.Chunks),
		zap.Int("workers", outcome.Workers),
		zap.Duration("duration", outcome.Duration),
		zap.Float64("throughput_mbps", outcome.ThroughputMBps()),
	)
	if outcome.RepairedLines > 0 {
		e.logger.Warn("repaired lines with invalid byte sequences",
			zap.Int64("repaired_lines", outcome.RepairedLines),
		)
	}

	return outcome, nil
}

func (e *Engine) targetChunkBytes(size int64) int {
	if e.chunkBytes > 0 {
		return e.chunkBytes
	}
	target := size / int64(e.workers*chunksPerWorker)
	if target < minChunkBytes {
		return minChunkBytes
	}
	if target > maxChunkBytes {
		return maxChunkBytes
	}
	return int(target)
}
