package genlog

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/sentinelkit/logscrub/internal/logger"
)

// progressInterval is how often WriteFile reports generation progress.
const progressInterval = 100000

var (
	firstNames = []string{"john", "jane", "bob", "alice", "charlie", "diana", "eve", "frank", "grace", "henry"}
	lastNames  = []string{"smith", "johnson", "williams", "brown", "jones", "garcia", "miller", "davis", "rodriguez", "martinez"}
	domains    = []string{"gmail.com", "yahoo.com", "hotmail.com", "company.com", "example.org", "test.net", "acme.io"}
	services   = []string{"AuthService", "UserService", "PaymentService", "DatabaseService", "CacheService", "APIGateway", "MessageQueue"}
	actions    = []string{"login", "logout", "register", "update", "delete", "query", "insert", "fetch", "validate", "process"}
	errorTypes = []string{"NullPointerException", "TimeoutError", "ValidationError", "DatabaseError", "NetworkError", "AuthError"}
)

const (
	alnumChars      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	upperDigitChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	tokenChars      = alnumChars + "-._"
)

// Generator produces synthetic log lines in a variety of real-world formats,
// seeded with fake PII so scrub rules have something to find. Output is
// deterministic for a given seed and base time.
type Generator struct {
	rng     *rand.Rand
	base    time.Time
	formats []func() string
	logger  *logger.Logger
}

// New creates a generator. The same seed reproduces the same line sequence
// relative to the creation time.
func New(seed int64, log *logger.Logger) *Generator {
	g := &Generator{
		rng:    rand.New(rand.NewSource(seed)),
		base:   time.Now(),
		logger: log.WithComponent("genlog"),
	}
	g.formats = []func() string{
		func() string {
			return fmt.Sprintf(`%s - - [%s] "GET /api/users HTTP/1.1" 200 %d "%s"`,
				g.IPv4(), g.Timestamp(), g.intn(100, 5000), g.Email())
		},
		func() string {
			return fmt.Sprintf("[%s] INFO: User %s logged in from %s", g.Timestamp(), g.Email(), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("[%s] WARN: Failed login attempt for %s from %s", g.Timestamp(), g.Email(), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("%s [DEBUG] Executing query for user_email=%s from host=%s", g.Timestamp(), g.Email(), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("%s PaymentService: Processing payment for card %s amount=$%d",
				g.ISOTimestamp(), g.CreditCard(), g.intn(10, 5000))
		},
		func() string {
			return fmt.Sprintf("[%s] API Request: POST /api/v1/users auth=%s ip=%s", g.Timestamp(), g.BearerToken(), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("%s UserService: New registration email=%s phone=%s ip=%s",
				g.Timestamp(), g.Email(), g.Phone(), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("[%s] ERROR: %s in %s for user %s",
				g.Timestamp(), g.pick(errorTypes), g.pick(services), g.Email())
		},
		func() string {
			return fmt.Sprintf("%s %s -> %s: Request from %s token=%s",
				g.ISOTimestamp(), g.pick(services), g.pick(services), g.IPv4(), g.randString(alnumChars, 40))
		},
		func() string {
			return fmt.Sprintf("%s AWS_ACCESS_KEY_ID=%s Instance=%s Action=DescribeInstances",
				g.Timestamp(), g.AWSKey(), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("[%s] EmailService: Sent notification to %s from %s", g.Timestamp(), g.Email(), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("%s SessionManager: Created session for %s (IP: %s, TTL: 3600s)",
				g.Timestamp(), g.Email(), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("AUDIT [%s] User=%s Action=DELETE Resource=/api/users/%d IP=%s",
				g.Timestamp(), g.Email(), g.intn(1, 10000), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("%s LB: %s:80 -> %s:8080 status=200 bytes=%d",
				g.Timestamp(), g.IPv4(), g.IPv4(), g.intn(100, 10000))
		},
		func() string {
			return fmt.Sprintf("[%s] Redis: SET user:%s from %s", g.Timestamp(), g.Email(), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("[%s] WS: Client %s connected, user=%s", g.Timestamp(), g.IPv4(), g.Email())
		},
		func() string {
			return fmt.Sprintf("%s RateLimiter: Throttling %s for user %s (100 req/min exceeded)",
				g.Timestamp(), g.IPv4(), g.Email())
		},
		func() string {
			return fmt.Sprintf("%s OAuth: Authorization code generated for %s redirect_uri=https://app.com/callback?token=%s",
				g.Timestamp(), g.Email(), g.randString(alnumChars, 32))
		},
		func() string {
			return fmt.Sprintf("%s APIGateway: Key rotation issued key=%s for %s",
				g.Timestamp(), g.APIKey(), g.Email())
		},
		func() string {
			return fmt.Sprintf("[%s] KYC: Verification requested ssn=%s email=%s ip=%s",
				g.Timestamp(), g.SSN(), g.Email(), g.IPv4())
		},
		func() string {
			return fmt.Sprintf(`{"timestamp": "%s", "level": "INFO", "user": "%s", "ip": "%s", "action": "%s"}`,
				g.ISOTimestamp(), g.Email(), g.IPv4(), g.pick(actions))
		},
		func() string {
			return fmt.Sprintf("%s k8s: Pod %s-%d started on node %s",
				g.Timestamp(), g.pick(services), g.intn(1, 99), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("%s SMS: Sent verification code to %s for user %s", g.Timestamp(), g.Phone(), g.Email())
		},
		func() string {
			return fmt.Sprintf("%s GDPR: Data export requested by %s (IP: %s, includes: profile, orders, payments %s)",
				g.Timestamp(), g.Email(), g.IPv4(), g.CreditCard())
		},
		func() string {
			return fmt.Sprintf("[%s] IPv6: Connection from %s user=%s service=%s",
				g.Timestamp(), g.IPv6(), g.Email(), g.pick(services))
		},
		func() string {
			return fmt.Sprintf("%s MFA: Code sent to %s for %s from %s", g.Timestamp(), g.Phone(), g.Email(), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("[%s] ADMIN: %s modified user %s from %s", g.Timestamp(), g.Email(), g.Email(), g.IPv4())
		},
		func() string {
			return fmt.Sprintf("%s Billing: Invoice generated for %s card=%s amount=$%d.%02d",
				g.Timestamp(), g.Email(), g.CreditCard(), g.intn(10, 1000), g.intn(0, 99))
		},
	}
	return g
}

// Line returns one synthetic log line in a randomly chosen format.
func (g *Generator) Line() string {
	return g.formats[g.rng.Intn(len(g.formats))]()
}

// Formats returns the number of distinct line formats.
func (g *Generator) Formats() int { return len(g.formats) }

// Generate writes n log lines to w.
func (g *Generator) Generate(w io.Writer, n int) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	for i := 0; i < n; i++ {
		if _, err := bw.WriteString(g.Line()); err != nil {
			return fmt.Errorf("failed to write log line: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("failed to write log line: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush generated logs: %w", err)
	}
	return nil
}

// WriteFile generates n lines into path, reporting progress as it goes.
// It returns the size of the written file in bytes.
func (g *Generator) WriteFile(path string, n int) (int64, error) {
	start := time.Now()

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create log file %s: %w", path, err)
	}

	bw := bufio.NewWriterSize(f, 1<<20)
	for i := 0; i < n; i++ {
		if _, err := bw.WriteString(g.Line()); err != nil {
			f.Close()
			return 0, fmt.Errorf("failed to write log line: %w", err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			f.Close()
			return 0, fmt.Errorf("failed to write log line: %w", err)
		}

		if (i+1)%progressInterval == 0 {
			elapsed := time.Since(start)
			g.logger.Info("generation progress",
				zap.Int("lines", i+1),
				zap.Int("total", n),
				zap.Float64("percent", float64(i+1)/float64(n)*100),
				zap.Float64("rate_per_sec", float64(i+1)/elapsed.Seconds()),
			)
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return 0, fmt.Errorf("failed to flush log file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("failed to close log file %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat log file %s: %w", path, err)
	}

	g.logger.Info("log generation complete",
		zap.String("path", path),
		zap.Int("lines", n),
		zap.Int("formats", len(g.formats)),
		zap.Float64("size_mb", float64(info.Size())/(1<<20)),
		zap.Duration("duration", time.Since(start)),
	)
	return info.Size(), nil
}

// Email returns a fake email address.
func (g *Generator) Email() string {
	return fmt.Sprintf("%s.%s%d@%s", g.pick(firstNames), g.pick(lastNames), g.rng.Intn(1000), g.pick(domains))
}

// IPv4 returns a fake IPv4 address.
func (g *Generator) IPv4() string {
	return fmt.Sprintf("%d.%d.%d.%d", g.intn(1, 255), g.rng.Intn(256), g.rng.Intn(256), g.intn(1, 255))
}

// IPv6 returns a fake IPv6 address.
func (g *Generator) IPv6() string {
	out := ""
	for i := 0; i < 8; i++ {
		if i > 0 {
			out += ":"
		}
		out += fmt.Sprintf("%04x", g.rng.Intn(65536))
	}
	return out
}

// CreditCard returns a fake 16-digit card number with dashes.
func (g *Generator) CreditCard() string {
	return fmt.Sprintf("%04d-%04d-%04d-%04d",
		g.intn(1000, 9999), g.intn(1000, 9999), g.intn(1000, 9999), g.intn(1000, 9999))
}

// SSN returns a fake social security number.
func (g *Generator) SSN() string {
	return fmt.Sprintf("%03d-%02d-%04d", g.intn(100, 999), g.intn(10, 99), g.intn(1000, 9999))
}

// Phone returns a fake US phone number.
func (g *Generator) Phone() string {
	return fmt.Sprintf("+1-%03d-%03d-%04d", g.intn(200, 999), g.intn(200, 999), g.intn(1000, 9999))
}

// APIKey returns a fake sk-prefixed API key.
func (g *Generator) APIKey() string {
	return "sk-" + g.randString(alnumChars, 24)
}

// AWSKey returns a fake AWS access key ID.
func (g *Generator) AWSKey() string {
	return "AKIA" + g.randString(upperDigitChars, 16)
}

// BearerToken returns a fake bearer authorization value.
func (g *Generator) BearerToken() string {
	return "Bearer " + g.randString(tokenChars, g.intn(30, 50))
}

// Timestamp returns a timestamp within the past week.
func (g *Generator) Timestamp() string {
	t := g.base.Add(-time.Duration(g.rng.Intn(7*24*3600)) * time.Second)
	return t.Format("2006-01-02 15:04:05")
}

// ISOTimestamp returns an ISO-8601 timestamp within the past week.
func (g *Generator) ISOTimestamp() string {
	t := g.base.Add(-time.Duration(g.rng.Intn(7*24*3600)) * time.Second)
	return t.UTC().Format("2006-01-02T15:04:05.000000") + "Z"
}

func (g *Generator) pick(list []string) string {
	return list[g.rng.Intn(len(list))]
}

// intn returns a random int in [lo, hi].
func (g *Generator) intn(lo, hi int) int {
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *Generator) randString(chars string, n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = chars[g.rng.Intn(len(chars))]
	}
	return string(out)
}
