package bench

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/sentinelkit/logscrub/internal/logger"
	"github.com/sentinelkit/logscrub/internal/rules"
	"github.com/sentinelkit/logscrub/internal/scrub"
)

// Result compares one engine run against the sequential baseline over the
// same input and rules.
type Result struct {
	Mode               string  `json:"mode"`
	Lines              int64   `json:"lines"`
	FileSizeMB         float64 `json:"file_size_mb"`
	EngineSeconds      float64 `json:"engine_seconds"`
	BaselineSeconds    float64 `json:"baseline_seconds"`
	Speedup            float64 `json:"speedup"`
	EngineThroughput   float64 `json:"engine_lines_per_sec"`
	BaselineThroughput float64 `json:"baseline_lines_per_sec"`
}

// Runner benchmarks the parallel engines against a single-goroutine
// reference implementation.
type Runner struct {
	set     *rules.Set
	workers int
	logger  *logger.Logger
}

// NewRunner creates a benchmark runner over a compiled rule set.
func NewRunner(set *rules.Set, workers int, log *logger.Logger) *Runner {
	return &Runner{set: set, workers: workers, logger: log.WithComponent("bench")}
}

// Baseline scrubs inputPath into outputPath on a single goroutine, line by
// line. It is the reference the engines are measured against and must
// produce byte-identical output to them.
func (r *Runner) Baseline(inputPath, outputPath string) (time.Duration, int64, error) {
	start := time.Now()

	in, err := os.Open(inputPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open input file %s: %w", inputPath, err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64<<10), 64<<20)
	w := bufio.NewWriterSize(out, 1<<20)

	var lines int64
	for scanner.Scan() {
		line := scanner.Text()
		if !utf8.ValidString(line) {
			line = strings.ToValidUTF8(line, "�")
		}
		if _, err := w.WriteString(r.set.Apply(line)); err != nil {
			out.Close()
			return 0, 0, fmt.Errorf("failed to write output file %s: %w", outputPath, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			out.Close()
			return 0, 0, fmt.Errorf("failed to write output file %s: %w", outputPath, err)
		}
		lines++
	}
	if err := scanner.Err(); err != nil {
		out.Close()
		return 0, 0, fmt.Errorf("failed to read input file %s: %w", inputPath, err)
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return 0, 0, fmt.Errorf("failed to flush output file %s: %w", outputPath, err)
	}
	if err := out.Close(); err != nil {
		return 0, 0, fmt.Errorf("failed to close output file %s: %w", outputPath, err)
	}

	return time.Since(start), lines, nil
}

// Compare times one engine run and one baseline run over inputPath. Both
// sides must agree on the line count; disagreement is a correctness bug,
// not a measurement.
func (r *Runner) Compare(ctx context.Context, inputPath, mode string) (*Result, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input file %s: %w", inputPath, err)
	}

	workDir, err := os.MkdirTemp("", "logscrub-bench-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	engine := scrub.New(r.set, scrub.Config{Workers: r.workers}, r.logger)

	engineOut := filepath.Join(workDir, "engine.log")
	engineStart := time.Now()
	var outcome *scrub.Outcome
	if mode == scrub.ModeMmap {
		outcome, err = engine.FileMmap(ctx, inputPath, engineOut)
	} else {
		outcome, err = engine.File(ctx, inputPath, engineOut)
	}
	if err != nil {
		return nil, fmt.Errorf("engine run failed: %w", err)
	}
	engineTime := time.Since(engineStart)

	baselineOut := filepath.Join(workDir, "baseline.log")
	baselineTime, baselineLines, err := r.Baseline(inputPath, baselineOut)
	if err != nil {
		return nil, fmt.Errorf("baseline run failed: %w", err)
	}

	if outcome.LinesProcessed != baselineLines {
		return nil, fmt.Errorf("line count mismatch: engine %d, baseline %d",
			outcome.LinesProcessed, baselineLines)
	}

	result := &Result{
		Mode:            outcome.Mode,
		Lines:           outcome.LinesProcessed,
		FileSizeMB:      float64(info.Size()) / (1 << 20),
		EngineSeconds:   engineTime.Seconds(),
		BaselineSeconds: baselineTime.Seconds(),
	}
	if result.EngineSeconds > 0 {
		result.Speedup = result.BaselineSeconds / result.EngineSeconds
		result.EngineThroughput = float64(result.Lines) / result.EngineSeconds
	}
	if result.BaselineSeconds > 0 {
		result.BaselineThroughput = float64(result.Lines) / result.BaselineSeconds
	}

	r.logger.Info("comparison complete",
		zap.String("mode", result.Mode),
		zap.Int64("lines", result.Lines),
		zap.Float64("engine_seconds", result.EngineSeconds),
		zap.Float64("baseline_seconds", result.BaselineSeconds),
		zap.Float64("speedup", result.Speedup),
	)
	return result, nil
}
