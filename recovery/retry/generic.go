package retry

import "context"

// DoTyped is a type-safe generic wrapper around Retryer.Do.
// It eliminates the need for type assertions on the return value.
//
// Usage:
//
//	val, attempts, err := retry.DoTyped[int](r, ctx, func(ctx context.Context, attempt int) (int, error) {
//	    return 42, nil
//	})
func DoTyped[T any](r *Retryer, ctx context.Context, fn func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	res, err := r.Do(ctx, func(ctx context.Context, attempt int) (any, error) {
		return fn(ctx, attempt)
	})
	if err != nil {
		var zero T
		return zero, res.Attempts, err
	}
	return res.Value.(T), res.Attempts, nil
}
