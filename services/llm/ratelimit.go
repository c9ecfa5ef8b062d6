// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedClient wraps a Client with a token bucket so bulk test
// generation does not trip provider rate limits.
type RateLimitedClient struct {
	inner   Client
	limiter *rate.Limiter
}

// NewRateLimited wraps inner, allowing rps requests per second with the
// given burst.
func NewRateLimited(inner Client, rps float64, burst int) *RateLimitedClient {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedClient{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Generate implements the Client interface.
func (c *RateLimitedClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.inner.Generate(ctx, prompt, params)
}

// GenerateWithSystem implements the Client interface.
func (c *RateLimitedClient) GenerateWithSystem(ctx context.Context, system, prompt string, params GenerationParams) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return c.inner.GenerateWithSystem(ctx, system, prompt, params)
}
