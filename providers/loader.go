package providers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

/* Loader manages provider configuration from providers.yaml
 * Provides in-memory lookup for fast access on the request path
 */

// Config represents the structure of providers.yaml
type Config struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig represents a single provider in the YAML file
type ProviderConfig struct {
	Name             string `yaml:"name"`
	Mode             string `yaml:"mode"`
	SigningSecret    string `yaml:"signing_secret"`    // may be an env indirection like ${STRIPE_WEBHOOK_SECRET}
	SignatureHeader  string `yaml:"signature_header"`  // optional
	ToleranceSeconds int    `yaml:"tolerance_seconds"` // optional
}

// Loader holds the loaded providers
type Loader struct {
	providers map[string]*Provider
}

// NewLoader creates a new provider loader
func NewLoader() *Loader {
	return &Loader{
		providers: make(map[string]*Provider),
	}
}

// Load reads and parses the providers.yaml file
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading providers file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing providers YAML: %w", err)
	}

	for _, pc := range config.Providers {
		mode, err := NewVerificationMode(pc.Mode)
		if err != nil {
			return fmt.Errorf("provider %s: %w", pc.Name, err)
		}

		provider := &Provider{
			Name:             pc.Name,
			Mode:             mode,
			SigningSecret:    os.ExpandEnv(pc.SigningSecret),
			SignatureHeader:  pc.SignatureHeader,
			ToleranceSeconds: pc.ToleranceSeconds,
		}

		if err := provider.Validate(); err != nil {
			return fmt.Errorf("validating provider: %w", err)
		}

		l.providers[provider.Name] = provider
	}

	return nil
}

// Get retrieves a provider by name
func (l *Loader) Get(name string) (*Provider, error) {
	provider, exists := l.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	return provider, nil
}

// List returns all loaded providers
func (l *Loader) List() []*Provider {
	providers := make([]*Provider, 0, len(l.providers))
	for _, provider := range l.providers {
		providers = append(providers, provider)
	}
	return providers
}

// Exists checks if a provider name is configured
func (l *Loader) Exists(name string) bool {
	_, exists := l.providers[name]
	return exists
}
