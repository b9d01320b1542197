// Package naming generates container names shared by object storage and the
// document database registry.
package naming

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaxNameLength is the longest container name object storage accepts.
const MaxNameLength = 63

// Role tags the purpose of a container inside its name.
type Role string

const (
	// RoleData marks the container holding the source dataset.
	RoleData Role = "data"
	// RoleIndex marks the container holding the index artifacts.
	RoleIndex Role = "idx"
)

// Name pairs the human readable container name with the sanitized
// identifier used as the storage container name and database primary key.
type Name struct {
	HumanReadable string `yaml:"human_readable" json:"human_readable"`
	Sanitized     string `yaml:"sanitized" json:"sanitized"`
}

// Sanitizer maps a human readable name onto a storage and database safe
// identifier. Implementations must be deterministic.
type Sanitizer interface {
	Sanitize(name string) string
}

// HashSanitizer produces the identifier the job tracking service derives for
// a name: the first 128 bits of its SHA-256 digest, hex encoded.
type HashSanitizer struct{}

var _ Sanitizer = HashSanitizer{}

// Sanitize returns the 32 character hex identifier for name.
func (HashSanitizer) Sanitize(name string) string {
	sum := sha256.Sum256([]byte(name))

	return hex.EncodeToString(sum[:16])
}

// Generator builds unique container names.
type Generator struct {
	sanitizer Sanitizer
	token     func() string
}

// Option configures a Generator.
type Option func(*Generator)

// WithSanitizer replaces the default HashSanitizer.
func WithSanitizer(s Sanitizer) Option {
	return func(g *Generator) {
		g.sanitizer = s
	}
}

// WithTokenSource replaces the random UUID token, mostly for tests.
func WithTokenSource(fn func() string) Option {
	return func(g *Generator) {
		g.token = fn
	}
}

// NewGenerator creates a Generator using HashSanitizer and UUIDv4 tokens
// unless overridden.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		sanitizer: HashSanitizer{},
		token:     func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Generate returns the container name for prefix and role. Every call draws
// a fresh token; uniqueness is not checked against existing containers.
func (g *Generator) Generate(prefix string, role Role) (Name, error) {
	if strings.TrimSpace(prefix) == "" {
		return Name{}, fmt.Errorf("prefix must not be empty")
	}

	if role != RoleData && role != RoleIndex {
		return Name{}, fmt.Errorf("unknown role %q", role)
	}

	human := Normalize(fmt.Sprintf("%s-%s-%s", prefix, role, g.token()))

	return Name{
		HumanReadable: human,
		Sanitized:     g.sanitizer.Sanitize(human),
	}, nil
}

// Normalize replaces '_' and '.' with '-', lowercases, and truncates to
// MaxNameLength characters.
func Normalize(name string) string {
	name = strings.NewReplacer("_", "-", ".", "-").Replace(name)
	name = strings.ToLower(name)

	runes := []rune(name)
	if len(runes) > MaxNameLength {
		runes = runes[:MaxNameLength]
	}

	return string(runes)
}
