package picker

import (
	"github.com/okian/groupsplit/internal/domain/dedupe"
	"github.com/okian/groupsplit/pkg/logger"
)

// Option applies a configuration option to the Picker.
type Option func(*Picker)

// WithLogger sets a custom logger for the picker.
func WithLogger(l logger.Logger) Option {
	return func(p *Picker) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithDeduper skips candidates whose partition was already scored in the
// current pick. The deduper is reset at the start of every pick.
func WithDeduper(d dedupe.Deduper) Option {
	return func(p *Picker) {
		p.deduper = d
	}
}

// WithWorkers scores candidates on n goroutines. Values of one or less
// keep the sequential path.
func WithWorkers(n int) Option {
	return func(p *Picker) {
		if n > 0 {
			p.workers = n
		}
	}
}
