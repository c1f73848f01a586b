// Package advisory asks a language model for NARCAN access options given a
// scored triage request.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/narcan-finder/internal/sampler"
	"github.com/danielpatrickdp/narcan-finder/internal/urgency"
)

// #region errors
var (
	ErrUnknownBackend = errors.New("advisory: unknown backend")
	ErrNoCredential   = errors.New("advisory: api credential required")
	ErrEmptyResponse  = errors.New("advisory: empty response")
)

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Permanent wraps err so WithRetry gives up immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// StatusError is a non-2xx reply from an HTTP backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("advisory: status %d: %s", e.Code, e.Body)
}

// #endregion errors

// #region request
// Request carries everything the prompt is built from.
type Request struct {
	Location string
	Symptoms string
	Sample   sampler.ResourceSample
	Verdict  urgency.Verdict
}

// Advisor produces advice text for a request.
type Advisor interface {
	Advise(ctx context.Context, req Request) (string, error)
	Close() error
}

// #endregion request

// #region config
// Backend names.
const (
	BackendNone   = "none"
	BackendOpenAI = "openai"
	BackendGemini = "gemini"
	BackendGRPC   = "grpc"
)

// Config selects and tunes a backend.
type Config struct {
	Backend     string
	Model       string
	Endpoint    string // base URL for openai, dial target for grpc
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Attempts    int
	Backoff     time.Duration
}

// KeyFunc supplies the API credential on demand.
type KeyFunc func() (string, error)

// #endregion config
