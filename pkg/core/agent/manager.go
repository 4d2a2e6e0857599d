package agent

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"filing_qa/pkg/core/llm"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

// Agent roles used by the question-answering pipeline.
const (
	RoleRequirements = "requirements"
	RoleAnswer       = "answer"
)

type Config struct {
	ActiveProvider string                    `yaml:"active_provider"`
	Providers      map[string]ProviderConfig `yaml:"providers"`
	Agents         map[string]AgentConfig    `yaml:"agents"`
}

type ProviderConfig struct {
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"` // OpenAI-compatible providers only
	APIKeyEnv string `yaml:"api_key_env"`
}

type AgentConfig struct {
	Provider    string `yaml:"provider"` // Optional override
	Description string `yaml:"description"`
}

// LoadConfig reads a models.yaml file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read models config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse models config: %w", err)
	}
	return cfg, nil
}

// Options controls how providers are constructed.
type Options struct {
	Timeout    time.Duration
	RatePerSec float64
	Logger     zerolog.Logger
}

type Manager struct {
	mu        sync.RWMutex
	config    Config
	providers map[string]llm.Provider
	logger    zerolog.Logger
}

// NewManager builds one provider per entry in cfg.Providers. Known names are
// deepseek, openai, qwen, gemini and claude; unknown names are skipped.
func NewManager(cfg Config, opts Options) *Manager {
	m := &Manager{
		config:    cfg,
		providers: make(map[string]llm.Provider),
		logger:    opts.Logger.With().Str("component", "agent").Logger(),
	}
	for name, pc := range cfg.Providers {
		p := buildProvider(name, pc, opts.Timeout)
		if p == nil {
			m.logger.Warn().Str("provider", name).Msg("unknown provider in models config, skipping")
			continue
		}
		m.providers[name] = llm.NewRateLimited(p, opts.RatePerSec)
	}
	return m
}

// NewManagerWithProviders is used when providers are constructed elsewhere, e.g. in tests.
func NewManagerWithProviders(cfg Config, providers map[string]llm.Provider) *Manager {
	m := &Manager{config: cfg, providers: make(map[string]llm.Provider, len(providers)), logger: zerolog.Nop()}
	for name, p := range providers {
		m.providers[name] = p
	}
	return m
}

func buildProvider(name string, pc ProviderConfig, timeout time.Duration) llm.Provider {
	apiKey := ""
	if pc.APIKeyEnv != "" {
		apiKey = os.Getenv(pc.APIKeyEnv)
	}
	switch name {
	case "deepseek":
		p := llm.NewDeepSeekProvider(apiKey, pc.Model, timeout)
		if pc.BaseURL != "" {
			p.BaseURL = pc.BaseURL
		}
		return p
	case "openai":
		p := llm.NewOpenAIProvider(apiKey, pc.Model, timeout)
		if pc.BaseURL != "" {
			p.BaseURL = pc.BaseURL
		}
		return p
	case "qwen":
		return llm.NewQwenProvider(apiKey, pc.Model, timeout)
	case "gemini":
		return llm.NewGeminiProvider(apiKey, pc.Model, timeout)
	case "claude":
		return llm.NewClaudeProvider(apiKey, pc.Model, timeout)
	}
	return nil
}

// GetProvider resolves the provider for an agent role: the role's override
// first, then the global active provider.
func (m *Manager) GetProvider(role string) (llm.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if agentConfig, ok := m.config.Agents[role]; ok && agentConfig.Provider != "" {
		if p, ok := m.providers[agentConfig.Provider]; ok {
			return p, nil
		}
	}
	if p, ok := m.providers[m.config.ActiveProvider]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("no provider configured for role %q (active %q)", role, m.config.ActiveProvider)
}

// Complete runs req against the provider resolved for role.
func (m *Manager) Complete(ctx context.Context, role string, req llm.Request) (string, error) {
	p, err := m.GetProvider(role)
	if err != nil {
		return "", &llm.ServiceError{Provider: "none", Message: err.Error()}
	}
	m.logger.Debug().Str("role", role).Str("provider", p.Name()).Msg("llm call")
	return p.Complete(ctx, req)
}

// Role binds the manager to a single role so callers only see an llm.Provider.
func (m *Manager) Role(role string) llm.Provider {
	return roleProvider{m: m, role: role}
}

type roleProvider struct {
	m    *Manager
	role string
}

func (r roleProvider) Name() string {
	if p, err := r.m.GetProvider(r.role); err == nil {
		return p.Name()
	}
	return "none"
}

func (r roleProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	return r.m.Complete(ctx, r.role, req)
}

func (m *Manager) SetGlobalProvider(newProvider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.providers[newProvider]; !ok {
		return fmt.Errorf("provider %s not found", newProvider)
	}
	m.config.ActiveProvider = newProvider
	m.logger.Info().Str("provider", newProvider).Msg("global provider switched")
	return nil
}

func (m *Manager) GetActiveProvider() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.ActiveProvider
}

// Available lists configured provider names in sorted order.
func (m *Manager) Available() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
