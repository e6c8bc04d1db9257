package realtime

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Provider string

const (
	ProviderAzure  Provider = "azure"
	ProviderOpenAI Provider = "openai"
)

const (
	DefaultAzureAPIVersion = "2024-10-01-preview"
	DefaultOpenAIModel     = "gpt-4o-realtime-preview"

	openAIRealtimeURL = "wss://api.openai.com/v1/realtime"
)

// Endpoint locates a realtime service. URL, when set, is used verbatim.
type Endpoint struct {
	Provider   Provider
	Host       string
	APIVersion string
	Deployment string
	Model      string
	APIKey     string
	URL        string
}

// Resolve returns the websocket URL and the handshake headers.
func (e Endpoint) Resolve() (string, http.Header, error) {
	header := http.Header{}

	if e.URL != "" {
		if e.APIKey != "" && e.Provider == ProviderOpenAI {
			header.Set("Authorization", "Bearer "+e.APIKey)
			header.Set("OpenAI-Beta", "realtime=v1")
		}
		return e.URL, header, nil
	}

	switch e.Provider {
	case ProviderAzure, "":
		host := strings.TrimSuffix(stripScheme(e.Host), "/")
		if host == "" {
			return "", nil, fmt.Errorf("azure endpoint requires a host")
		}
		if e.Deployment == "" {
			return "", nil, fmt.Errorf("azure endpoint requires a deployment")
		}

		apiVersion := e.APIVersion
		if apiVersion == "" {
			apiVersion = DefaultAzureAPIVersion
		}

		query := url.Values{}
		query.Set("api-version", apiVersion)
		query.Set("deployment", e.Deployment)
		if e.APIKey != "" {
			query.Set("api-key", e.APIKey)
		}

		u := url.URL{Scheme: "wss", Host: host, Path: "/openai/realtime", RawQuery: query.Encode()}
		return u.String(), header, nil

	case ProviderOpenAI:
		model := e.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		if e.APIKey == "" {
			return "", nil, fmt.Errorf("openai endpoint requires an api key")
		}

		header.Set("Authorization", "Bearer "+e.APIKey)
		header.Set("OpenAI-Beta", "realtime=v1")
		return openAIRealtimeURL + "?" + url.Values{"model": {model}}.Encode(), header, nil
	}

	return "", nil, fmt.Errorf("unknown realtime provider %q", e.Provider)
}

// Redact hides credentials carried in the query string.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	query := u.Query()
	if query.Has("api-key") {
		query.Set("api-key", "REDACTED")
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func stripScheme(host string) string {
	if i := strings.Index(host, "://"); i >= 0 {
		return host[i+3:]
	}
	return host
}
