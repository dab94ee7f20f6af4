package rpc

import (
	"fmt"
	"net/url"
	"strings"
)

// maxProviderIDLen bounds provider ids to keep store records small.
const maxProviderIDLen = 128

// Auth carries the credential a provider requires. Exactly one field may be
// set; a nil Auth means the endpoint is unauthenticated.
type Auth struct {
	// BearerToken is sent as "Authorization: Bearer <token>".
	BearerToken string `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty"`

	// HeaderName/HeaderValue are sent as a custom HTTP header.
	HeaderName  string `json:"header_name,omitempty" yaml:"header_name,omitempty"`
	HeaderValue string `json:"header_value,omitempty" yaml:"header_value,omitempty"`

	// QueryName/QueryValue are appended to the URL query string.
	QueryName  string `json:"query_name,omitempty" yaml:"query_name,omitempty"`
	QueryValue string `json:"query_value,omitempty" yaml:"query_value,omitempty"`

	// PathSegment is appended to the URL path, e.g. an API key suffix.
	PathSegment string `json:"path_segment,omitempty" yaml:"path_segment,omitempty"`
}

func (a *Auth) Validate() error {
	if a == nil {
		return nil
	}
	set := 0
	if a.BearerToken != "" {
		set++
	}
	if a.HeaderName != "" || a.HeaderValue != "" {
		if a.HeaderName == "" || a.HeaderValue == "" {
			return fmt.Errorf("header auth requires both name and value")
		}
		set++
	}
	if a.QueryName != "" || a.QueryValue != "" {
		if a.QueryName == "" || a.QueryValue == "" {
			return fmt.Errorf("query auth requires both name and value")
		}
		set++
	}
	if a.PathSegment != "" {
		set++
	}
	if set > 1 {
		return fmt.Errorf("provider auth must set at most one credential type")
	}
	return nil
}

// Provider is one registered upstream RPC endpoint.
type Provider struct {
	ID    string    `json:"id"`
	URL   string    `json:"url"`
	Auth  *Auth     `json:"auth,omitempty"`
	Owner Principal `json:"owner"`
}

func (p Provider) Validate() error {
	if p.ID == "" || len(p.ID) > maxProviderIDLen {
		return newError(KindInvalidRequest, "provider id must be 1..%d characters", maxProviderIDLen)
	}
	if _, err := hostnameFromURL(p.URL); err != nil {
		return newError(KindInvalidRequest, "invalid provider URL %q: %v", p.URL, err)
	}
	if err := p.Auth.Validate(); err != nil {
		return newError(KindInvalidRequest, "provider %q: %v", p.ID, err)
	}
	return nil
}

// Endpoint is a fully resolved outcall target: the provider URL with its
// credential applied. Header credentials never appear in the URL and URL
// credentials never appear in headers, matching how each provider expects
// to be called.
type Endpoint struct {
	// Provider is the registered provider id, or the hostname for ad-hoc
	// URL endpoints. Used in error details and metrics labels.
	Provider string

	URL     string
	Host    string
	Headers map[string]string
}

// Endpoint resolves the provider into a concrete outcall target.
func (p Provider) Endpoint() (Endpoint, error) {
	u := p.URL
	headers := map[string]string{}

	if a := p.Auth; a != nil {
		switch {
		case a.BearerToken != "":
			headers["Authorization"] = "Bearer " + a.BearerToken
		case a.HeaderName != "":
			headers[a.HeaderName] = a.HeaderValue
		case a.QueryName != "":
			sep := "?"
			if strings.Contains(u, "?") {
				sep = "&"
			}
			u += sep + url.QueryEscape(a.QueryName) + "=" + url.QueryEscape(a.QueryValue)
		case a.PathSegment != "":
			if !strings.HasSuffix(u, "/") {
				u += "/"
			}
			u += a.PathSegment
		}
	}

	host, err := hostnameFromURL(u)
	if err != nil {
		return Endpoint{}, newError(KindInvalidRequest, "invalid provider URL %q: %v", p.URL, err)
	}

	return Endpoint{Provider: p.ID, URL: u, Host: host, Headers: headers}, nil
}

// EndpointFromURL builds an endpoint from a caller-supplied ad-hoc URL.
func EndpointFromURL(rawURL string) (Endpoint, error) {
	host, err := hostnameFromURL(rawURL)
	if err != nil {
		return Endpoint{}, newError(KindInvalidRequest, "invalid URL %q: %v", rawURL, err)
	}
	return Endpoint{Provider: host, URL: rawURL, Host: host}, nil
}

func hostnameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("missing hostname")
	}
	return host, nil
}
