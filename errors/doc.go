// Package errors classifies pipeline failures and renders them for the CLI.
//
// Every failure falls into one Kind:
//   - KindTransient: network, timeout and rate-limit failures; retried
//   - KindPermanent: authentication, malformed request, not found; not retried
//   - KindValidation: bad input rejected before it is stored
//   - KindConsistency: a state transition the engine refuses, such as
//     publishing a stale artifact
//
// Classify inspects the error chain with errors.Is/As, so wrapped errors keep
// their kind:
//
//	if errors.Classify(err) == errors.KindTransient {
//	    // safe to retry
//	}
//
// CLIError pairs an error with a user-facing message and suggestion:
//
//	return errors.Render(err)
package errors
