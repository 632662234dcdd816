// Package integrations connects Jira and ClickUp accounts through OAuth.
package integrations

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/oauth2"

	"honourus/internal/domain"
)

// ProviderConfig holds one provider's OAuth client settings.
type ProviderConfig struct {
	ClientID     string   `envconfig:"CLIENT_ID"`
	ClientSecret string   `envconfig:"CLIENT_SECRET"`
	AuthURL      string   `envconfig:"AUTH_URL"`
	TokenURL     string   `envconfig:"TOKEN_URL"`
	APIURL       string   `envconfig:"API_URL"`
	RedirectURL  string   `envconfig:"REDIRECT_URL"`
	Scopes       []string `envconfig:"SCOPES"`
}

// Providers is read from JIRA_* and CLICKUP_* environment variables.
type Providers struct {
	Jira    ProviderConfig `envconfig:"JIRA"`
	ClickUp ProviderConfig `envconfig:"CLICKUP"`
}

var providerDefaults = map[string]ProviderConfig{
	domain.ServiceJira: {
		AuthURL:  "https://auth.atlassian.com/authorize",
		TokenURL: "https://auth.atlassian.com/oauth/token",
		APIURL:   "https://api.atlassian.com",
		Scopes:   []string{"read:jira-work", "read:jira-user", "offline_access"},
	},
	domain.ServiceClickUp: {
		AuthURL:  "https://app.clickup.com/api",
		TokenURL: "https://api.clickup.com/api/v2/oauth/token",
		APIURL:   "https://api.clickup.com/api/v2",
	},
}

// LoadProviders reads provider settings from the environment and fills
// unset endpoints with the public ones.
func LoadProviders() (Providers, error) {
	var p Providers
	if err := envconfig.Process("", &p); err != nil {
		return Providers{}, fmt.Errorf("load provider settings: %w", err)
	}
	p.Jira = withDefaults(p.Jira, providerDefaults[domain.ServiceJira])
	p.ClickUp = withDefaults(p.ClickUp, providerDefaults[domain.ServiceClickUp])
	return p, nil
}

func withDefaults(c, d ProviderConfig) ProviderConfig {
	if c.AuthURL == "" {
		c.AuthURL = d.AuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = d.TokenURL
	}
	if c.APIURL == "" {
		c.APIURL = d.APIURL
	}
	if len(c.Scopes) == 0 {
		c.Scopes = d.Scopes
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	return c
}

// Get returns the settings for service.
func (p Providers) Get(service string) (ProviderConfig, error) {
	var c ProviderConfig
	switch service {
	case domain.ServiceJira:
		c = p.Jira
	case domain.ServiceClickUp:
		c = p.ClickUp
	default:
		return ProviderConfig{}, UnsupportedServiceError{Service: service}
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return ProviderConfig{}, NotConfiguredError{Service: service}
	}
	return c, nil
}

// OAuth2 builds the x/oauth2 client config.
func (c ProviderConfig) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       c.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.AuthURL,
			TokenURL:  c.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// UnsupportedServiceError is returned for a service other than jira or clickup.
type UnsupportedServiceError struct {
	Service string
}

func (e UnsupportedServiceError) Error() string {
	return fmt.Sprintf("unsupported service %q", e.Service)
}

// NotConfiguredError is returned when a provider has no client credentials.
type NotConfiguredError struct {
	Service string
}

func (e NotConfiguredError) Error() string {
	return fmt.Sprintf("%s integration is not configured", e.Service)
}
