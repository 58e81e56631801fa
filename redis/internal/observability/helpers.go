package observability

import (
	"context"

	"go.opencensus.io/tag"
)

func TagKeyValuesIntoContext(ctx context.Context, key tag.Key, values ...string) (context.Context, error) {
	insertions := make([]tag.Mutator, len(values))
	for i, value := range values {
		insertions[i] = tag.Insert(key, value)
	}
	return tag.New(ctx, insertions...)
}

// WithEngineTag returns a context carrying the engine instance tag, reused
// across every stats.Record call an Engine makes so its measurements are
// attributable in multi-engine processes.
func WithEngineTag(ctx context.Context, engineID string) context.Context {
	ctx, err := TagKeyValuesIntoContext(ctx, KeyEngine, engineID)
	if err != nil {
		return ctx
	}
	return ctx
}

// WithCommandTag layers the command-verb tag onto ctx for a single Record call.
func WithCommandTag(ctx context.Context, verb string) context.Context {
	ctx, err := TagKeyValuesIntoContext(ctx, KeyCommand, verb)
	if err != nil {
		return ctx
	}
	return ctx
}
