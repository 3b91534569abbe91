package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v57/github"

	prerrors "github.com/randalmurphal/proref/errors"
	prhttp "github.com/randalmurphal/proref/http"
)

// Source errors
var (
	// ErrUnknownPlatform indicates the remote is neither GitHub nor GitLab.
	ErrUnknownPlatform = errors.New("unknown issue tracker platform")

	// ErrTokenRequired indicates no access token was given.
	ErrTokenRequired = errors.New("access token is required")

	// ErrRepoRequired indicates the repository or project is missing.
	ErrRepoRequired = errors.New("repository is required")

	// ErrInvalidIssueID indicates a ticket id that names no issue number.
	ErrInvalidIssueID = fmt.Errorf("%w: invalid issue id", prerrors.ErrValidation)
)

// normalize maps a client library error onto the http sentinels, so
// errors.Classify treats every tracker alike.
func normalize(ctx context.Context, service, op string, resp *http.Response, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var rl *github.RateLimitError
	if errors.As(err, &rl) {
		return fmt.Errorf("%s: %w", op, &prhttp.RateLimitError{
			Service:    service,
			RetryAfter: time.Until(rl.Rate.Reset.Time),
		})
	}
	var abuse *github.AbuseRateLimitError
	if errors.As(err, &abuse) {
		return fmt.Errorf("%s: %w", op, &prhttp.RateLimitError{Service: service, RetryAfter: abuse.GetRetryAfter()})
	}

	if resp == nil {
		return fmt.Errorf("%s: %w: %w", op, prhttp.ErrConnection, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		rle := &prhttp.RateLimitError{Service: service}
		if s, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil {
			rle.RetryAfter = time.Duration(s) * time.Second
		}
		return fmt.Errorf("%s: %w", op, rle)
	}
	sentinel := prhttp.StatusSentinel(resp.StatusCode)
	if sentinel == nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, sentinel, err)
}
