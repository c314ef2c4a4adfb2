package company

import (
	"context"

	"go.uber.org/zap"
)

// Action is a best-effort side mutation run after the primary entity has
// been committed on the platform.
type Action struct {
	Name string
	Run  func(ctx context.Context) error
}

type ActionResult struct {
	Name string
	Err  error
}

// RunActions runs every action in order. Failures are logged and reported,
// never propagated.
func RunActions(ctx context.Context, logger *zap.Logger, actions []Action) []ActionResult {
	results := make([]ActionResult, 0, len(actions))
	for _, a := range actions {
		err := a.Run(ctx)
		if err != nil {
			logger.Warn("post-commit action failed", zap.String("action", a.Name), zap.Error(err))
		} else {
			logger.Debug("post-commit action done", zap.String("action", a.Name))
		}
		results = append(results, ActionResult{Name: a.Name, Err: err})
	}
	return results
}
