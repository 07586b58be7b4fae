package genlog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sentinelkit/logscrub/internal/logger"
	"github.com/sentinelkit/logscrub/internal/rules"
)

func fixedGenerator(seed int64) *Generator {
	g := New(seed, logger.NewNop())
	g.base = time.Unix(1700000000, 0)
	return g
}

func TestGenerateLineCount(t *testing.T) {
	g := fixedGenerator(1)
	var buf bytes.Buffer
	if err := g.Generate(&buf, 500); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("output does not end with a newline")
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 500 {
		t.Errorf("got %d lines, want 500", len(lines))
	}
	for i, line := range lines {
		if line == "" {
			t.Errorf("line %d is empty", i)
		}
	}
}

func TestDeterministicForSeed(t *testing.T) {
	var a, b bytes.Buffer
	if err := fixedGenerator(42).Generate(&a, 200); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if err := fixedGenerator(42).Generate(&b, 200); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !bytes.Equal(a.Bytes(), b.Bytes()) {
		t.Error("same seed produced different output")
	}

	var c bytes.Buffer
	if err := fixedGenerator(43).Generate(&c, 200); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if bytes.Equal(a.Bytes(), c.Bytes()) {
		t.Error("different seeds produced identical output")
	}
}

func TestLinesContainScrubbableData(t *testing.T) {
	set, err := rules.Compile(rules.Defaults())
	if err != nil {
		t.Fatalf("failed to compile default rules: %v", err)
	}

	g := fixedGenerator(7)
	changed := 0
	const n = 300
	for i := 0; i < n; i++ {
		line := g.Line()
		if set.Apply(line) != line {
			changed++
		}
	}

	// Nearly every format embeds at least one value the default rules
	// match; a low hit rate means the fake data drifted from the rules.
	if changed < n*8/10 {
		t.Errorf("only %d of %d lines contained scrubbable data", changed, n)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	g := fixedGenerator(3)

	size, err := g.WriteFile(path, 1000)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if size <= 0 {
		t.Error("expected a positive file size")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read generated file: %v", err)
	}
	if int64(len(data)) != size {
		t.Errorf("reported size %d, actual %d", size, len(data))
	}
	if got := bytes.Count(data, []byte{'\n'}); got != 1000 {
		t.Errorf("got %d lines, want 1000", got)
	}
}

func TestValueShapes(t *testing.T) {
	g := fixedGenerator(9)

	if !strings.Contains(g.Email(), "@") {
		t.Error("email missing @")
	}
	if parts := strings.Split(g.IPv4(), "."); len(parts) != 4 {
		t.Error("ipv4 does not have four octets")
	}
	if parts := strings.Split(g.IPv6(), ":"); len(parts) != 8 {
		t.Error("ipv6 does not have eight groups")
	}
	if !strings.HasPrefix(g.APIKey(), "sk-") {
		t.Error("api key missing sk- prefix")
	}
	if !strings.HasPrefix(g.AWSKey(), "AKIA") || len(g.AWSKey()) != 20 {
		t.Error("aws key malformed")
	}
	if !strings.HasPrefix(g.BearerToken(), "Bearer ") {
		t.Error("bearer token missing scheme")
	}
	if len(g.SSN()) != 11 {
		t.Errorf("ssn has unexpected length: %q", g.SSN())
	}
}
