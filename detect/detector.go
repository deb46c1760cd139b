package detect

import (
	"context"
	"time"

	"github.com/smallnest/memograph/log"
	"github.com/smallnest/memograph/memory"
)

// Decision is the outcome of memory-worthiness analysis.
type Decision struct {
	ShouldRemember bool
	Category       memory.Category
	Importance     float64
	Keywords       []string
}

// Analyzer decides whether text is worth remembering. Implementations call an
// external text-analysis provider.
type Analyzer interface {
	Analyze(ctx context.Context, text string, convContext []string) (*Decision, error)
}

// Config configures the detector.
type Config struct {
	// ProviderTimeout bounds a single analyzer call before falling back to
	// the heuristic.
	ProviderTimeout time.Duration
	Logger          log.Logger
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{ProviderTimeout: 5 * time.Second}
}

// Detector runs the primary analyzer and degrades to the local heuristic when
// the provider is unavailable or times out. It never returns an error and
// never blocks the caller beyond the provider timeout: when both the provider
// and the heuristic decline, the content is simply not remembered.
type Detector struct {
	provider Analyzer
	fallback *Heuristic
	config   Config
	logger   log.Logger
}

// NewDetector creates a detector. provider may be nil, in which case only the
// heuristic runs.
func NewDetector(provider Analyzer, config Config) *Detector {
	if config.ProviderTimeout <= 0 {
		config.ProviderTimeout = DefaultConfig().ProviderTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Detector{
		provider: provider,
		fallback: NewHeuristic(),
		config:   config,
		logger:   logger,
	}
}

// Detect analyzes text and returns a decision. The returned decision always
// has a valid category and an importance within [0,1].
func (d *Detector) Detect(ctx context.Context, text string, convContext []string) Decision {
	if d.provider != nil {
		tctx, cancel := context.WithTimeout(ctx, d.config.ProviderTimeout)
		decision, err := d.provider.Analyze(tctx, text, convContext)
		cancel()
		if err == nil && decision != nil {
			return sanitize(*decision)
		}
		d.logger.Warn("text analysis provider failed, using heuristic: %v", err)
	}

	decision := d.fallback.Analyze(text)
	return sanitize(decision)
}

// sanitize forces the decision back into the model's invariants.
func sanitize(d Decision) Decision {
	if !d.Category.Valid() {
		d.Category = memory.CategoryContext
	}
	d.Importance = memory.Clamp01(d.Importance)
	return d
}
