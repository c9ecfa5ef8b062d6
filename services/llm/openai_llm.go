// Copyright (C) 2025 TestForge Labs (oss@testforgelabs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini"

// OpenAIClient talks to any OpenAI-compatible chat completion endpoint,
// including local servers (Ollama, vLLM) via BaseURL.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// OpenAIConfig configures the client. Empty fields fall back to the
// OPENAI_API_KEY, OPENAI_MODEL and OPENAI_BASE_URL environment variables.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// NewOpenAIClient creates a chat completion client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if apiKey == "" && baseURL == "" {
		slog.Error("no API key configured and no local base URL given")
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	model := cfg.Model
	if model == "" {
		model = os.Getenv("OPENAI_MODEL")
	}
	if model == "" {
		model = defaultModel
		slog.Warn("OPENAI_MODEL not set, using default", "model", model)
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(baseURL, "/")
	}

	slog.Info("Initializing OpenAI-compatible client",
		"model", model, "base_url", clientCfg.BaseURL)
	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
	}, nil
}

// Generate implements the Client interface.
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return o.GenerateWithSystem(ctx, "You are a helpful assistant.", prompt, params)
}

// GenerateWithSystem implements the Client interface.
func (o *OpenAIClient) GenerateWithSystem(ctx context.Context, system, prompt string, params GenerationParams) (string, error) {
	slog.Debug("Generating text via OpenAI-compatible endpoint", "model", o.model)
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("chat completion call failed", "error", err)
		return "", fmt.Errorf("chat completion call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("backend returned no choices")
		return "", fmt.Errorf("backend returned no choices")
	}
	slog.Debug("Received completion", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
