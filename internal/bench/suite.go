package bench

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/sentinelkit/logscrub/internal/genlog"
	"github.com/sentinelkit/logscrub/internal/logger"
	"github.com/sentinelkit/logscrub/internal/rules"
	"github.com/sentinelkit/logscrub/internal/scrub"
)

// SuiteConfig controls the benchmark suite.
type SuiteConfig struct {
	Sizes           []int  // line counts for size scaling
	ComplexityLines int    // line count for the pattern complexity run
	Mode            string // scrub.ModeParallel or scrub.ModeMmap
	Workers         int
	Seed            int64
	OutputDir       string // where benchmark_results.json lands
}

// ComplexityResult measures how run time scales with the number of rules.
type ComplexityResult struct {
	Name            string  `json:"name"`
	NumPatterns     int     `json:"num_patterns"`
	EngineSeconds   float64 `json:"engine_seconds"`
	BaselineSeconds float64 `json:"baseline_seconds"`
	Speedup         float64 `json:"speedup"`
}

// section is one named block in benchmark_results.json.
type section struct {
	Benchmark string      `json:"benchmark"`
	Results   interface{} `json:"results"`
}

// Suite generates log files and runs the full comparison matrix over them.
type Suite struct {
	cfg      SuiteConfig
	logger   *logger.Logger
	sections []section
}

// NewSuite creates a benchmark suite, filling unset config fields with
// defaults.
func NewSuite(cfg SuiteConfig, log *logger.Logger) *Suite {
	if len(cfg.Sizes) == 0 {
		cfg.Sizes = []int{1000, 10000, 100000, 500000}
	}
	if cfg.ComplexityLines == 0 {
		cfg.ComplexityLines = 100000
	}
	if cfg.Mode == "" {
		cfg.Mode = scrub.ModeParallel
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	return &Suite{cfg: cfg, logger: log.WithComponent("bench")}
}

// scalingRules is the fixed rule set for the size scaling benchmark. Four
// rules keeps it comparable across runs while still exercising the common
// identifier shapes.
func scalingRules() []rules.Rule {
	return []rules.Rule{
		{Name: "email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Replacement: "[EMAIL]"},
		{Name: "ipv4", Pattern: `\b(?:\d{1,3}\.){3}\d{1,3}\b`, Replacement: "[IP]"},
		{Name: "credit_card", Pattern: `\b\d{4}[- ]\d{4}[- ]\d{4}[- ]\d{4}\b`, Replacement: "[CREDIT_CARD]"},
		{Name: "ssn", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Replacement: "[SSN]"},
	}
}

// complexitySets returns rule sets of increasing size. Each set is a
// superset of the previous one so the run time difference is attributable
// to rule count alone.
func complexitySets() []struct {
	Name  string
	Rules []rules.Rule
} {
	simple := []rules.Rule{
		{Name: "handle", Pattern: `@\S+`, Replacement: "@[HIDDEN]"},
	}
	medium := []rules.Rule{
		{Name: "email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Replacement: "[EMAIL]"},
		{Name: "ipv4", Pattern: `\b(?:\d{1,3}\.){3}\d{1,3}\b`, Replacement: "[IP]"},
		{Name: "credit_card", Pattern: `\b\d{4}[- ]\d{4}[- ]\d{4}[- ]\d{4}\b`, Replacement: "[CREDIT_CARD]"},
		{Name: "ssn", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Replacement: "[SSN]"},
		{Name: "api_key", Pattern: `\bsk-[A-Za-z0-9]+\b`, Replacement: "[API_KEY]"},
	}
	full := append(append([]rules.Rule{}, medium...),
		rules.Rule{Name: "bearer_token", Pattern: `Bearer\s+[A-Za-z0-9\-._~+/]+=*`, Replacement: "Bearer [TOKEN]"},
		rules.Rule{Name: "password", Pattern: `password[=:]\S+`, Replacement: "password=[REDACTED]"},
		rules.Rule{Name: "token", Pattern: `token[=:]\S+`, Replacement: "token=[REDACTED]"},
		rules.Rule{Name: "id_code", Pattern: `\b[A-Z]{2,}\d{6,}\b`, Replacement: "[ID]"},
		rules.Rule{Name: "amount", Pattern: `\$\d+\.\d{2}`, Replacement: "$[AMOUNT]"},
	)

	return []struct {
		Name  string
		Rules []rules.Rule
	}{
		{Name: "simple", Rules: simple},
		{Name: "medium", Rules: medium},
		{Name: "complex", Rules: full},
	}
}

// RunSizeScaling benchmarks a fixed rule set over inputs of increasing
// length.
func (s *Suite) RunSizeScaling(ctx context.Context) ([]*Result, error) {
	set, err := rules.Compile(scalingRules())
	if err != nil {
		return nil, fmt.Errorf("failed to compile scaling rules: %w", err)
	}

	workDir, err := os.MkdirTemp("", "logscrub-bench-data-")
	if err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	gen := genlog.New(s.cfg.Seed, s.logger)
	runner := NewRunner(set, s.cfg.Workers, s.logger)

	results := make([]*Result, 0, len(s.cfg.Sizes))
	for _, size := range s.cfg.Sizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		inputPath := filepath.Join(workDir, fmt.Sprintf("input-%d.log", size))
		if _, err := gen.WriteFile(inputPath, size); err != nil {
			return nil, fmt.Errorf("failed to generate %d line input: %w", size, err)
		}

		s.logger.Info("running size benchmark", zap.Int("lines", size), zap.String("mode", s.cfg.Mode))
		result, err := runner.Compare(ctx, inputPath, s.cfg.Mode)
		if err != nil {
			return nil, fmt.Errorf("size benchmark at %d lines failed: %w", size, err)
		}
		results = append(results, result)

		// The largest files add up quickly. Drop each input once measured.
		if err := os.Remove(inputPath); err != nil {
			s.logger.Warn("failed to remove benchmark input", zap.String("path", inputPath), zap.Error(err))
		}
	}

	s.sections = append(s.sections, section{Benchmark: "file_size_scaling", Results: results})
	return results, nil
}

// RunPatternComplexity benchmarks rule sets of increasing size over a fixed
// input.
func (s *Suite) RunPatternComplexity(ctx context.Context) ([]*ComplexityResult, error) {
	workDir, err := os.MkdirTemp("", "logscrub-bench-data-")
	if err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "input.log")
	gen := genlog.New(s.cfg.Seed, s.logger)
	if _, err := gen.WriteFile(inputPath, s.cfg.ComplexityLines); err != nil {
		return nil, fmt.Errorf("failed to generate complexity input: %w", err)
	}

	sets := complexitySets()
	results := make([]*ComplexityResult, 0, len(sets))
	for _, entry := range sets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		set, err := rules.Compile(entry.Rules)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s rules: %w", entry.Name, err)
		}

		s.logger.Info("running complexity benchmark",
			zap.String("set", entry.Name),
			zap.Int("patterns", set.Len()),
		)
		runner := NewRunner(set, s.cfg.Workers, s.logger)
		cmp, err := runner.Compare(ctx, inputPath, s.cfg.Mode)
		if err != nil {
			return nil, fmt.Errorf("complexity benchmark %s failed: %w", entry.Name, err)
		}
		results = append(results, &ComplexityResult{
			Name:            entry.Name,
			NumPatterns:     set.Len(),
			EngineSeconds:   cmp.EngineSeconds,
			BaselineSeconds: cmp.BaselineSeconds,
			Speedup:         cmp.Speedup,
		})
	}

	s.sections = append(s.sections, section{Benchmark: "pattern_complexity", Results: results})
	return results, nil
}

// Run executes every benchmark, saves the JSON report, and prints the
// summary to w.
func (s *Suite) Run(ctx context.Context, w io.Writer) error {
	sizeResults, err := s.RunSizeScaling(ctx)
	if err != nil {
		return err
	}
	complexityResults, err := s.RunPatternComplexity(ctx)
	if err != nil {
		return err
	}

	path, err := s.SaveJSON()
	if err != nil {
		return err
	}
	s.logger.Info("benchmark results saved", zap.String("path", path))

	s.PrintSummary(w, sizeResults, complexityResults)
	return nil
}

// SaveJSON writes all collected sections to benchmark_results.json in the
// configured output directory and returns the path.
func (s *Suite) SaveJSON() (string, error) {
	data, err := json.MarshalIndent(s.sections, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}
	path := filepath.Join(s.cfg.OutputDir, "benchmark_results.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// PrintSummary renders the aligned result tables plus aggregate speedup
// figures.
func (s *Suite) PrintSummary(w io.Writer, sizes []*Result, complexity []*ComplexityResult) {
	fmt.Fprintf(w, "\nBenchmark summary (%s mode, %d workers)\n\n", s.cfg.Mode, s.effectiveWorkers())

	if len(sizes) > 0 {
		tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LINES\tSIZE (MB)\tENGINE (s)\tBASELINE (s)\tSPEEDUP\tLINES/SEC")
		for _, r := range sizes {
			fmt.Fprintf(tw, "%d\t%.2f\t%.3f\t%.3f\t%.2fx\t%.0f\n",
				r.Lines, r.FileSizeMB, r.EngineSeconds, r.BaselineSeconds, r.Speedup, r.EngineThroughput)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	if len(complexity) > 0 {
		tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RULE SET\tPATTERNS\tENGINE (s)\tBASELINE (s)\tSPEEDUP")
		for _, r := range complexity {
			fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%.2fx\n",
				r.Name, r.NumPatterns, r.EngineSeconds, r.BaselineSeconds, r.Speedup)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}

	var sum, max, peak float64
	var count int
	for _, r := range sizes {
		sum += r.Speedup
		count++
		if r.Speedup > max {
			max = r.Speedup
		}
		if r.EngineThroughput > peak {
			peak = r.EngineThroughput
		}
	}
	for _, r := range complexity {
		sum += r.Speedup
		count++
		if r.Speedup > max {
			max = r.Speedup
		}
	}
	if count > 0 {
		fmt.Fprintf(w, "Average speedup: %.2fx\n", sum/float64(count))
		fmt.Fprintf(w, "Maximum speedup: %.2fx\n", max)
	}
	if peak > 0 {
		fmt.Fprintf(w, "Peak throughput: %.0f lines/sec\n", peak)
	}
}

func (s *Suite) effectiveWorkers() int {
	if s.cfg.Workers > 0 {
		return s.cfg.Workers
	}
	return runtime.NumCPU()
}
