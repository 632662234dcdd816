package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"honourus/internal/domain"
)

const (
	AwardProofGated   = "proof_gated"
	AwardOnCompletion = "on_completion"
)

// Config models the honourus policy document (honourus.yml).
type Config struct {
	Credits struct {
		CompletionAward  string           `yaml:"completion_award"`
		PriorityDefaults map[string]int64 `yaml:"priority_defaults"`
	} `yaml:"credits"`
	Recognition struct {
		MaxCredits int64                      `yaml:"max_credits"`
		AllowSelf  bool                       `yaml:"allow_self"`
		Types      map[string]RecognitionType `yaml:"types"`
	} `yaml:"recognition"`
	OAuth struct {
		StateTTL string `yaml:"state_ttl"`
	} `yaml:"oauth"`
	Integrations map[string]domain.IntegrationSettings `yaml:"integrations"`
	Webhooks     []WebhookConfig                       `yaml:"webhooks"`
}

type RecognitionType struct {
	Description    string `yaml:"description"`
	DefaultCredits int64  `yaml:"default_credits"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Credits.CompletionAward {
	case AwardProofGated, AwardOnCompletion:
	default:
		return fmt.Errorf("credits.completion_award must be %s or %s", AwardProofGated, AwardOnCompletion)
	}
	for _, p := range domain.TaskPriorities {
		v, ok := c.Credits.PriorityDefaults[p]
		if !ok {
			return fmt.Errorf("credits.priority_defaults.%s is required", p)
		}
		if v < 0 {
			return fmt.Errorf("credits.priority_defaults.%s must not be negative", p)
		}
	}
	if c.Recognition.MaxCredits <= 0 {
		return fmt.Errorf("recognition.max_credits must be positive")
	}
	if len(c.Recognition.Types) == 0 {
		return fmt.Errorf("recognition.types is required")
	}
	for name, rt := range c.Recognition.Types {
		if name == "" {
			return fmt.Errorf("recognition.types contains an empty type")
		}
		if rt.DefaultCredits < 0 || rt.DefaultCredits > c.Recognition.MaxCredits {
			return fmt.Errorf("recognition type %s default_credits out of range", name)
		}
	}
	if c.OAuth.StateTTL != "" {
		d, err := time.ParseDuration(c.OAuth.StateTTL)
		if err != nil {
			return fmt.Errorf("oauth.state_ttl: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("oauth.state_ttl must be positive")
		}
	}
	for service := range c.Integrations {
		if service != domain.ServiceJira && service != domain.ServiceClickUp {
			return fmt.Errorf("integrations.%s is not a supported service", service)
		}
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
	}
	return nil
}

// TaskCredits returns the default credit value for a priority.
func (c *Config) TaskCredits(priority string) int64 {
	return c.Credits.PriorityDefaults[priority]
}

// RecognitionCredits returns the catalog default for a recognition type.
func (c *Config) RecognitionCredits(kind string) (int64, bool) {
	rt, ok := c.Recognition.Types[kind]
	return rt.DefaultCredits, ok
}

// StateTTL returns how long an OAuth state stays valid.
func (c *Config) StateTTL() time.Duration {
	if d, err := time.ParseDuration(c.OAuth.StateTTL); err == nil && d > 0 {
		return d
	}
	return 10 * time.Minute
}

// IntegrationDefaults returns a copy of the default settings for a service.
func (c *Config) IntegrationDefaults(service string) domain.IntegrationSettings {
	src := c.Integrations[service]
	out := domain.IntegrationSettings{
		StatusMappings:   map[string]string{},
		CreditRules:      map[string]int64{},
		SelectedProjects: []string{},
	}
	for k, v := range src.StatusMappings {
		out.StatusMappings[k] = v
	}
	for k, v := range src.CreditRules {
		out.CreditRules[k] = v
	}
	out.SelectedProjects = append(out.SelectedProjects, src.SelectedProjects...)
	return out
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// ToYAML serialises the config for storage.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

const defaultTemplate = `credits:
  # proof_gated: award only when the task required proof and proof was uploaded
  # on_completion: award unless proof is required and missing
  completion_award: proof_gated
  priority_defaults:
    low: 10
    medium: 25
    high: 50
    urgent: 100

recognition:
  max_credits: 100
  # When true, users may recognize themselves.
  allow_self: false
  types:
    achievement:
      description: "Delivered an outstanding result"
      default_credits: 25
    collaboration:
      description: "Made the team work better together"
      default_credits: 15
    innovation:
      description: "Brought a new idea to life"
      default_credits: 30
    leadership:
      description: "Guided others through a challenge"
      default_credits: 20

oauth:
  state_ttl: 10m

integrations:
  jira:
    status_mappings:
      "To Do": todo
      "In Progress": in-progress
      "In Review": in-review
      "Done": completed
    credit_rules:
      bug: 15
      story: 25
      epic: 100
    selected_projects: []
  clickup:
    status_mappings:
      "to do": todo
      "in progress": in-progress
      "review": in-review
      "complete": completed
    credit_rules:
      task: 20
    selected_projects: []

webhooks: []
`
