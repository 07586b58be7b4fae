package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelkit/logscrub/internal/bench"
	"github.com/sentinelkit/logscrub/internal/genlog"
	"github.com/sentinelkit/logscrub/internal/logger"
	"github.com/sentinelkit/logscrub/internal/rules"
	"github.com/sentinelkit/logscrub/internal/scrub"
)

var version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "scrub":
		runScrub(os.Args[2:])
	case "gen":
		runGen(os.Args[2:])
	case "bench":
		runBench(os.Args[2:])
	case "version":
		fmt.Printf("logscrub %s\n", version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  scrub    Scrub sensitive data from a log file\n")
	fmt.Fprintf(os.Stderr, "  gen      Generate synthetic log data for testing\n")
	fmt.Fprintf(os.Stderr, "  bench    Compare the engines against the sequential baseline\n")
	fmt.Fprintf(os.Stderr, "  version  Show version information\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s scrub -input app.log -output app.clean.log\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s scrub -input app.log -output app.clean.log -mmap -workers 8\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s gen -output test.log -lines 1000000\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s bench -quick\n", os.Args[0])
}

// newLogger builds a console logger for interactive use
func newLogger(level string) *logger.Logger {
	log, err := logger.New(logger.Config{Level: level, Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return log
}

// signalContext cancels on SIGINT or SIGTERM
func signalContext(log *logger.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("received shutdown signal, cancelling operations...")
		cancel()
	}()

	return ctx, cancel
}

// loadRuleSet compiles the pack at path, or the built-in defaults
func loadRuleSet(path string, log *logger.Logger) *rules.Set {
	var (
		loaded []rules.Rule
		err    error
	)
	if path == "" {
		loaded = rules.Defaults()
	} else {
		loaded, err = rules.Load(path)
		if err != nil {
			log.Fatal("failed to load rule pack", zap.String("path", path), zap.Error(err))
		}
	}

	set, err := rules.Compile(loaded)
	if err != nil {
		log.Fatal("failed to compile rules", zap.Error(err))
	}
	return set
}

func runScrub(args []string) {
	fs := flag.NewFlagSet("scrub", flag.ExitOnError)
	var (
		input      = fs.String("input", "", "Input log file (required)")
		output     = fs.String("output", "", "Output file (required)")
		rulesPath  = fs.String("rules", "", "Rule pack YAML file (default: built-in rules)")
		workers    = fs.Int("workers", 0, "Worker goroutines (default: one per CPU)")
		chunkBytes = fs.Int("chunk-bytes", 0, "Chunk size override in bytes (default: sized from the input)")
		useMmap    = fs.Bool("mmap", false, "Read the input through a memory mapping")
		logLevel   = fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	fs.Parse(args)

	if *input == "" || *output == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s scrub [options]\n\nOptions:\n", os.Args[0])
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s scrub -input app.log -output app.clean.log\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s scrub -input app.log -output app.clean.log -rules rules.yaml\n", os.Args[0])
		os.Exit(1)
	}

	log := newLogger(*logLevel)
	defer log.Sync()

	set := loadRuleSet(*rulesPath, log)

	ctx, cancel := signalContext(log)
	defer cancel()

	engine := scrub.New(set, scrub.Config{Workers: *workers, ChunkBytes: *chunkBytes}, log)

	var (
		outcome *scrub.Outcome
		err     error
	)
	if *useMmap {
		outcome, err = engine.FileMmap(ctx, *input, *output)
	} else {
		outcome, err = engine.File(ctx, *input, *output)
	}
	if err != nil {
		log.Fatal("scrub failed", zap.Error(err))
	}

	fmt.Printf("Scrubbed %s -> %s\n", *input, *output)
	fmt.Printf("  mode:       %s\n", outcome.Mode)
	fmt.Printf("  rules:      %d (fingerprint %s)\n", set.Len(), set.Fingerprint())
	fmt.Printf("  lines:      %d\n", outcome.LinesProcessed)
	fmt.Printf("  bytes:      %d\n", outcome.BytesWritten)
	fmt.Printf("  chunks:     %d\n", outcome.Chunks)
	fmt.Printf("  workers:    %d\n", outcome.Workers)
	fmt.Printf("  duration:   %s\n", outcome.Duration.Round(time.Millisecond))
	fmt.Printf("  throughput: %.1f MB/s (%.0f lines/s)\n", outcome.ThroughputMBps(), outcome.LinesPerSecond())
	if outcome.RepairedLines > 0 {
		fmt.Printf("  repaired:   %d lines contained invalid UTF-8\n", outcome.RepairedLines)
	}
}

func runGen(args []string) {
	fs := flag.NewFlagSet("gen", flag.ExitOnError)
	var (
		output   = fs.String("output", "test_data.log", "Output file")
		lines    = fs.Int("lines", 100000, "Number of lines to generate")
		seed     = fs.Int64("seed", 0, "Random seed (0 means time-based)")
		logLevel = fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	)
	fs.Parse(args)

	log := newLogger(*logLevel)
	defer log.Sync()

	genSeed := *seed
	if genSeed == 0 {
		genSeed = time.Now().UnixNano()
	}

	gen := genlog.New(genSeed, log)
	size, err := gen.WriteFile(*output, *lines)
	if err != nil {
		log.Fatal("generation failed", zap.Error(err))
	}

	fmt.Printf("Generated %s: %d lines, %.1f MB\n", *output, *lines, float64(size)/(1<<20))
}

func runBench(args []string) {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	var (
		useMmap   = fs.Bool("mmap", false, "Benchmark the mmap engine instead of the buffered one")
		workers   = fs.Int("workers", 0, "Worker goroutines (default: one per CPU)")
		seed      = fs.Int64("seed", 42, "Random seed for generated inputs")
		outputDir = fs.String("output-dir", ".", "Directory for benchmark_results.json")
		quick     = fs.Bool("quick", false, "Run a reduced matrix for a fast signal")
		sizesFlag = fs.String("sizes", "", "Comma-separated line counts for size scaling")
		logLevel  = fs.String("log-level", "warn", "Log level (debug, info, warn, error)")
	)
	fs.Parse(args)

	log := newLogger(*logLevel)
	defer log.Sync()

	cfg := bench.SuiteConfig{
		Workers:   *workers,
		Seed:      *seed,
		OutputDir: *outputDir,
	}
	if *useMmap {
		cfg.Mode = scrub.ModeMmap
	}
	if *sizesFlag != "" {
		cfg.Sizes = parseSizes(*sizesFlag)
	} else if *quick {
		cfg.Sizes = []int{1000, 10000}
		cfg.ComplexityLines = 20000
	}

	ctx, cancel := signalContext(log)
	defer cancel()

	suite := bench.NewSuite(cfg, log)
	if err := suite.Run(ctx, os.Stdout); err != nil {
		log.Fatal("benchmark failed", zap.Error(err))
	}
}

// parseSizes parses a comma-separated list of line counts
func parseSizes(s string) []int {
	parts := strings.Split(s, ",")
	sizes := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			fmt.Fprintf(os.Stderr, "Invalid size %q in -sizes\n", part)
			os.Exit(1)
		}
		sizes = append(sizes, n)
	}
	return sizes
}
