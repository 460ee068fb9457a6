package dialect

import (
	"fmt"
	"log/slog"
)

// AdapterFactory builds an Adapter for one dialect.
type AdapterFactory func(cfg ConnConfig, logger *slog.Logger) Adapter

// SynthesizerFactory builds a Synthesizer for one dialect.
type SynthesizerFactory func() Synthesizer

type registration struct {
	adapter     AdapterFactory
	synthesizer SynthesizerFactory
}

// Registry maps dialect tags to their adapter/synthesizer constructor pair.
// It is the sole extension point for adding dialects: registration happens
// once at process start, resolution any time after.
type Registry struct {
	entries map[Tag]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[Tag]registration)}
}

// Register binds a tag to its constructor pair. Later registrations for the
// same tag replace earlier ones.
func (r *Registry) Register(tag Tag, af AdapterFactory, sf SynthesizerFactory) {
	r.entries[tag] = registration{adapter: af, synthesizer: sf}
}

// Resolve returns the constructor pair for a tag. Unknown tags fail with
// ErrUnsupportedDialect; there is no fallback and no partial match.
func (r *Registry) Resolve(tag Tag) (AdapterFactory, SynthesizerFactory, error) {
	reg, ok := r.entries[tag]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, tag)
	}
	return reg.adapter, reg.synthesizer, nil
}

// Tags returns the registered dialect tags in unspecified order.
func (r *Registry) Tags() []Tag {
	tags := make([]Tag, 0, len(r.entries))
	for tag := range r.entries {
		tags = append(tags, tag)
	}
	return tags
}
