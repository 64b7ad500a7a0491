package analyzer

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/agent-api/core"
	"github.com/agent-api/core/agent"
	"github.com/agent-api/core/agent/bootstrap"
	"github.com/agent-api/ollama"
	"github.com/go-logr/logr"
)

const describePrompt = "This is the final frame of a generated video. Describe what it shows in one or two sentences."

// The ollama provider always talks to this address; BaseURL and Port only
// select the server that is checked before the agent is built.
const (
	defaultOllamaURL  = "http://localhost"
	defaultOllamaPort = 11434
)

// AgentConfig selects the Ollama server and vision model used for descriptions
type AgentConfig struct {
	BaseURL string
	Port    int
	Model   string
}

// VisionAgent describes saved frames with a local Ollama vision model
type VisionAgent struct {
	agent  *agent.Agent
	logger *slog.Logger
}

// NewAgent initializes and returns a new vision agent
func NewAgent(ctx context.Context, logger *slog.Logger, cfg AgentConfig) (*VisionAgent, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Check if Ollama is running
	if err := pingOllama(ctx, cfg); err != nil {
		return nil, err
	}
	if strings.TrimSuffix(cfg.BaseURL, "/") != defaultOllamaURL || cfg.Port != defaultOllamaPort {
		logger.Warn("ollama provider ignores the configured address and uses the default",
			"configured", fmt.Sprintf("%s:%d", cfg.BaseURL, cfg.Port),
			"used", fmt.Sprintf("%s:%d", defaultOllamaURL, defaultOllamaPort),
		)
	}

	lg := logr.FromSlogHandler(logger.Handler())

	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  &lg,
		BaseURL: cfg.BaseURL,
		Port:    cfg.Port,
	})
	if err := provider.UseModel(ctx, &core.Model{ID: cfg.Model}); err != nil {
		return nil, fmt.Errorf("failed to select model %s: %w", cfg.Model, err)
	}

	a, err := agent.NewAgent(
		bootstrap.WithProvider(provider),
		bootstrap.WithSystemPrompt("You are a visual analysis assistant. Answer with a short, literal description of the image."),
		bootstrap.WithLogger(&lg),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	return &VisionAgent{
		agent:  a,
		logger: logger,
	}, nil
}

func pingOllama(ctx context.Context, cfg AgentConfig) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s:%d/api/tags", strings.TrimSuffix(cfg.BaseURL, "/"), cfg.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build ollama request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama is not reachable at %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %s", resp.Status)
	}
	return nil
}

// Describe asks the model what the image at imagePath shows
func (v *VisionAgent) Describe(ctx context.Context, imagePath string) (string, error) {
	// agent.WithImagePath panics on unreadable files, so the image is loaded here.
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read frame: %w", err)
	}

	response, err := v.agent.Run(
		ctx,
		agent.WithInput(describePrompt),
		agent.WithImageBase64(base64.StdEncoding.EncodeToString(data), "image/png"),
	)
	if err != nil {
		return "", err
	}

	// The last message is the model's answer, not the prompt
	last := response.Pop()
	if last == nil || last.Role != core.AssistantMessageRole {
		return "", fmt.Errorf("no response received from model")
	}
	v.logger.Debug("frame described", "image", imagePath, "chars", len(last.Content))

	return strings.TrimSpace(last.Content), nil
}
