package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type OAuthConfig interface {
	GetOAuth2RedirectURI() string
	GetProvidersFile() string
	LoadProviders() ([]ProviderConfig, error)
}

// ProviderConfig describes one third-party login provider.
type ProviderConfig struct {
	Name         string   `yaml:"name"`
	IssuerURL    string   `yaml:"issuer_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

type providersFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

type OAuth struct {
	providersFile string
}

var _ OAuthConfig = OAuth{}

// GetOAuth2RedirectURI is where the browser is sent after a successful
// third-party login, with the access token appended as ?token=.
func (OAuth) GetOAuth2RedirectURI() string {
	return GetEnv("OAUTH2_REDIRECT_URI", "http://localhost:5173/oauth2/redirect")
}

func (o OAuth) GetProvidersFile() string {
	if o.providersFile != "" {
		return o.providersFile
	}
	return GetEnv("OAUTH_PROVIDERS_FILE", "")
}

// LoadProviders reads the provider definitions. No file configured means no providers.
func (o OAuth) LoadProviders() ([]ProviderConfig, error) {
	path := o.GetProvidersFile()
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading providers file %s: %w", path, err)
	}
	return ParseProviders(data)
}

// ParseProviders decodes a providers document, expanding ${VAR} references
// so client secrets can stay out of the file.
func ParseProviders(data []byte) ([]ProviderConfig, error) {
	var doc providersFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &doc); err != nil {
		return nil, fmt.Errorf("parsing providers: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Providers))
	for i, p := range doc.Providers {
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		if p.Name == "" || p.IssuerURL == "" || p.ClientID == "" {
			return nil, fmt.Errorf("provider %d: name, issuer_url and client_id are required", i)
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("provider %q defined twice", p.Name)
		}
		seen[p.Name] = struct{}{}
		if len(p.Scopes) == 0 {
			p.Scopes = []string{"openid", "profile", "email"}
		}
		doc.Providers[i] = p
	}
	return doc.Providers, nil
}
