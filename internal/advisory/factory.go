package advisory

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// #region factory
// New builds the configured backend wrapped in WithRetry. key is only
// called for backends that need a credential.
func New(ctx context.Context, cfg Config, key KeyFunc, logger *zap.Logger) (Advisor, error) {
	var (
		base Advisor
		err  error
	)
	switch cfg.Backend {
	case BackendNone, "":
		return Local{}, nil
	case BackendOpenAI, BackendGemini:
		apiKey, kerr := credential(key)
		if kerr != nil {
			return nil, kerr
		}
		if cfg.Backend == BackendOpenAI {
			base, err = NewOpenAI(apiKey, cfg)
		} else {
			base, err = NewGemini(ctx, apiKey, cfg)
		}
	case BackendGRPC:
		base, err = NewGRPC(cfg.Endpoint)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return WithRetry(base, cfg.Attempts, cfg.Backoff, logger), nil
}

func credential(key KeyFunc) (string, error) {
	if key == nil {
		return "", ErrNoCredential
	}
	apiKey, err := key()
	if err != nil {
		return "", fmt.Errorf("advisory: load credential: %w", err)
	}
	if apiKey == "" {
		return "", ErrNoCredential
	}
	return apiKey, nil
}

// #endregion factory
