package billing

import (
	"context"

	"github.com/erp/projectbilling/internal/domain/shared"
	"go.uber.org/zap"
)

// RetryOnConflict runs fn and re-runs it while it fails with a conflict
// error, at most retries extra times. fn must reload every aggregate it
// touches so a re-run observes the state written by the winning writer.
func RetryOnConflict(ctx context.Context, retries int, logger *zap.Logger, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil || !shared.IsConflict(err) || attempt >= retries {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Debug("concurrent modification, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
}
