package ports

import "context"

// Decider answers yes/no questions raised while a pipeline runs.
// The CLI injects either an interactive terminal prompt or a fixed answer,
// so steps and the pipeline never read from a terminal directly.
type Decider interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}
