package handlers

import (
	"context"

	"github.com/sidnei-almeida/groq-finance-inference/internal/modules/quant"
)

// NarrativeGenerator turns a finished analysis into prose commentary stored
// alongside the metrics. Generation failures are never fatal to the analysis.
type NarrativeGenerator interface {
	Narrate(ctx context.Context, result *quant.Result) (string, error)
}

// NoopNarrator is the default generator: no commentary.
type NoopNarrator struct{}

// Narrate returns an empty narrative.
func (NoopNarrator) Narrate(context.Context, *quant.Result) (string, error) {
	return "", nil
}
