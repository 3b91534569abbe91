// Package retry wraps calls to external services with bounded exponential
// backoff.
//
// The retry decision is made by a caller-supplied Predicate so each call
// site decides which failures are transient. A Policy is a plain value and
// every call to Do builds its own backoff state, so concurrent calls never
// share mutable state.
//
//	err := retry.Do(ctx, retry.DefaultPolicy(), errors.IsTransient, func(ctx context.Context) error {
//		return client.Ping(ctx)
//	})
//
//	issues, err := retry.DoValue(ctx, policy, jira.IsRetryable, func(ctx context.Context) ([]Issue, error) {
//		return client.Search(ctx, jql)
//	})
package retry
