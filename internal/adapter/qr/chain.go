package qr

import (
	"context"
	"errors"
	"fmt"

	"vending-gateway/internal/core/domain"
	"vending-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// Chain tries providers in order and returns the first image produced.
type Chain struct {
	providers []ports.QRProvider
	log       zerolog.Logger
}

// NewChain creates a provider chain.
func NewChain(providers []ports.QRProvider, log zerolog.Logger) *Chain {
	return &Chain{providers: providers, log: log}
}

// Generate implements ports.QRProvider.
func (c *Chain) Generate(ctx context.Context, req domain.QRRequest) (*domain.QRImage, error) {
	if len(c.providers) == 0 {
		return nil, errors.New("qr: no providers configured")
	}

	var errs []error
	for _, p := range c.providers {
		img, err := p.Generate(ctx, req)
		if err == nil {
			return img, nil
		}
		c.log.Warn().Err(err).Str("provider", p.Name()).Msg("qr provider failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// Name returns the provider name.
func (c *Chain) Name() string {
	return "chain"
}
