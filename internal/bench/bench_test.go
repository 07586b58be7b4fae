package bench

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sentinelkit/logscrub/internal/genlog"
	"github.com/sentinelkit/logscrub/internal/logger"
	"github.com/sentinelkit/logscrub/internal/rules"
	"github.com/sentinelkit/logscrub/internal/scrub"
)

func benchInput(t *testing.T, lines int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.log")
	gen := genlog.New(42, logger.NewNop())
	if _, err := gen.WriteFile(path, lines); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestBaselineMatchesEngines(t *testing.T) {
	set, err := rules.Compile(scalingRules())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	inputPath := benchInput(t, 300)
	outDir := t.TempDir()

	runner := NewRunner(set, 2, logger.NewNop())
	baselinePath := filepath.Join(outDir, "baseline.log")
	_, baselineLines, err := runner.Baseline(inputPath, baselinePath)
	if err != nil {
		t.Fatalf("Baseline() error = %v", err)
	}
	if baselineLines != 300 {
		t.Fatalf("Baseline() lines = %d, want 300", baselineLines)
	}
	want, err := os.ReadFile(baselinePath)
	if err != nil {
		t.Fatalf("failed to read baseline output: %v", err)
	}

	engine := scrub.New(set, scrub.Config{Workers: 4, ChunkBytes: 512}, logger.NewNop())
	for _, mode := range []string{scrub.ModeParallel, scrub.ModeMmap} {
		t.Run(mode, func(t *testing.T) {
			outPath := filepath.Join(outDir, mode+".log")
			var outcome *scrub.Outcome
			var err error
			if mode == scrub.ModeMmap {
				outcome, err = engine.FileMmap(context.Background(), inputPath, outPath)
			} else {
				outcome, err = engine.File(context.Background(), inputPath, outPath)
			}
			if err != nil {
				t.Fatalf("engine error = %v", err)
			}
			if outcome.LinesProcessed != baselineLines {
				t.Fatalf("engine lines = %d, want %d", outcome.LinesProcessed, baselineLines)
			}
			got, err := os.ReadFile(outPath)
			if err != nil {
				t.Fatalf("failed to read engine output: %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Error("engine output differs from baseline output")
			}
		})
	}
}

func TestCompare(t *testing.T) {
	set, err := rules.Compile(scalingRules())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	inputPath := benchInput(t, 500)

	runner := NewRunner(set, 2, logger.NewNop())
	result, err := runner.Compare(context.Background(), inputPath, scrub.ModeParallel)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if result.Mode != scrub.ModeParallel {
		t.Errorf("Mode = %q, want %q", result.Mode, scrub.ModeParallel)
	}
	if result.Lines != 500 {
		t.Errorf("Lines = %d, want 500", result.Lines)
	}
	if result.FileSizeMB <= 0 {
		t.Errorf("FileSizeMB = %f, want > 0", result.FileSizeMB)
	}
	if result.EngineSeconds <= 0 || result.BaselineSeconds <= 0 {
		t.Errorf("timings not recorded: engine=%f baseline=%f", result.EngineSeconds, result.BaselineSeconds)
	}
	if result.Speedup <= 0 {
		t.Errorf("Speedup = %f, want > 0", result.Speedup)
	}
	if result.EngineThroughput <= 0 || result.BaselineThroughput <= 0 {
		t.Errorf("throughput not recorded: engine=%f baseline=%f", result.EngineThroughput, result.BaselineThroughput)
	}
}

func TestCompareMissingInput(t *testing.T) {
	set, err := rules.Compile(scalingRules())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	runner := NewRunner(set, 2, logger.NewNop())
	if _, err := runner.Compare(context.Background(), filepath.Join(t.TempDir(), "missing.log"), scrub.ModeParallel); err == nil {
		t.Fatal("Compare() expected error for missing input")
	}
}

func TestSuiteRun(t *testing.T) {
	outDir := t.TempDir()
	suite := NewSuite(SuiteConfig{
		Sizes:           []int{50, 120},
		ComplexityLines: 80,
		Workers:         2,
		Seed:            7,
		OutputDir:       outDir,
	}, logger.NewNop())

	var buf bytes.Buffer
	if err := suite.Run(context.Background(), &buf); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Benchmark summary") {
		t.Error("summary header missing from output")
	}
	if !strings.Contains(out, "Average speedup") {
		t.Error("aggregate speedup missing from output")
	}

	data, err := os.ReadFile(filepath.Join(outDir, "benchmark_results.json"))
	if err != nil {
		t.Fatalf("failed to read results file: %v", err)
	}
	var sections []struct {
		Benchmark string          `json:"benchmark"`
		Results   json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(data, &sections); err != nil {
		t.Fatalf("failed to decode results file: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(sections))
	}
	if sections[0].Benchmark != "file_size_scaling" {
		t.Errorf("sections[0] = %q, want %q", sections[0].Benchmark, "file_size_scaling")
	}
	if sections[1].Benchmark != "pattern_complexity" {
		t.Errorf("sections[1] = %q, want %q", sections[1].Benchmark, "pattern_complexity")
	}

	var sizeResults []*Result
	if err := json.Unmarshal(sections[0].Results, &sizeResults); err != nil {
		t.Fatalf("failed to decode size results: %v", err)
	}
	if len(sizeResults) != 2 {
		t.Fatalf("size results = %d, want 2", len(sizeResults))
	}
	if sizeResults[0].Lines != 50 || sizeResults[1].Lines != 120 {
		t.Errorf("size result lines = %d, %d; want 50, 120", sizeResults[0].Lines, sizeResults[1].Lines)
	}

	var complexityResults []*ComplexityResult
	if err := json.Unmarshal(sections[1].Results, &complexityResults); err != nil {
		t.Fatalf("failed to decode complexity results: %v", err)
	}
	wantPatterns := []int{1, 5, 10}
	if len(complexityResults) != len(wantPatterns) {
		t.Fatalf("complexity results = %d, want %d", len(complexityResults), len(wantPatterns))
	}
	for i, r := range complexityResults {
		if r.NumPatterns != wantPatterns[i] {
			t.Errorf("complexity[%d].NumPatterns = %d, want %d", i, r.NumPatterns, wantPatterns[i])
		}
	}
}
