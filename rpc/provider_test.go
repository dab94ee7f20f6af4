package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Provider_Endpoint(t *testing.T) {
	tests := []struct {
		name            string
		provider        Provider
		expectedURL     string
		expectedHost    string
		expectedHeaders map[string]string
	}{
		{
			name:            "no credential",
			provider:        Provider{ID: "open", URL: "https://rpc.example.com"},
			expectedURL:     "https://rpc.example.com",
			expectedHost:    "rpc.example.com",
			expectedHeaders: map[string]string{},
		},
		{
			name: "bearer token goes to the Authorization header",
			provider: Provider{
				ID:   "bearer",
				URL:  "https://rpc.example.com",
				Auth: &Auth{BearerToken: "tok123"},
			},
			expectedURL:     "https://rpc.example.com",
			expectedHost:    "rpc.example.com",
			expectedHeaders: map[string]string{"Authorization": "Bearer tok123"},
		},
		{
			name: "header credential goes to its own header",
			provider: Provider{
				ID:   "hdr",
				URL:  "https://rpc.example.com",
				Auth: &Auth{HeaderName: "X-Api-Key", HeaderValue: "k"},
			},
			expectedURL:     "https://rpc.example.com",
			expectedHost:    "rpc.example.com",
			expectedHeaders: map[string]string{"X-Api-Key": "k"},
		},
		{
			name: "query credential goes to the URL",
			provider: Provider{
				ID:   "query",
				URL:  "https://rpc.example.com/base",
				Auth: &Auth{QueryName: "api-key", QueryValue: "k"},
			},
			expectedURL:     "https://rpc.example.com/base?api-key=k",
			expectedHost:    "rpc.example.com",
			expectedHeaders: map[string]string{},
		},
		{
			name: "path segment is appended to the URL path",
			provider: Provider{
				ID:   "path",
				URL:  "https://rpc.example.com/v2",
				Auth: &Auth{PathSegment: "my-api-key"},
			},
			expectedURL:     "https://rpc.example.com/v2/my-api-key",
			expectedHost:    "rpc.example.com",
			expectedHeaders: map[string]string{},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := require.New(t)

			ep, err := test.provider.Endpoint()
			c.NoError(err)
			c.Equal(test.provider.ID, ep.Provider)
			c.Equal(test.expectedURL, ep.URL)
			c.Equal(test.expectedHost, ep.Host)
			c.Equal(test.expectedHeaders, ep.Headers)
		})
	}
}

func Test_Auth_Validate(t *testing.T) {
	tests := []struct {
		name    string
		auth    *Auth
		wantErr bool
	}{
		{name: "nil auth", auth: nil},
		{name: "bearer only", auth: &Auth{BearerToken: "t"}},
		{name: "header missing value", auth: &Auth{HeaderName: "X-Key"}, wantErr: true},
		{name: "query missing name", auth: &Auth{QueryValue: "v"}, wantErr: true},
		{name: "two credential types", auth: &Auth{BearerToken: "t", PathSegment: "s"}, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.auth.Validate()
			if test.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func Test_EndpointFromURL(t *testing.T) {
	c := require.New(t)

	ep, err := EndpointFromURL("https://rpc.example.com")
	c.NoError(err)
	c.Equal("rpc.example.com", ep.Provider)
	c.Equal("rpc.example.com", ep.Host)

	_, err = EndpointFromURL("ftp://rpc.example.com")
	c.Error(err)
	_, err = EndpointFromURL("https://")
	c.Error(err)
}

func Test_Selection_Validate(t *testing.T) {
	tests := []struct {
		name      string
		selection Selection
		wantErr   bool
	}{
		{name: "cluster only", selection: Selection{Cluster: "mainnet"}},
		{name: "providers only", selection: Selection{ProviderIDs: []string{"p1"}}},
		{name: "urls only", selection: Selection{URLs: []string{"https://rpc.example.com"}}},
		{name: "nothing set", selection: Selection{}, wantErr: true},
		{name: "cluster and providers", selection: Selection{Cluster: "devnet", ProviderIDs: []string{"p1"}}, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.selection.Validate()
			if test.wantErr {
				require.Equal(t, KindInvalidRequest, KindOf(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func Test_Registry_Resolve(t *testing.T) {
	c := require.New(t)
	registry, _, _ := newTestRegistry(t, testProvider("p1"), testProvider("p2"))

	// A cluster alias with no mapping falls back to its public endpoint.
	endpoints, err := registry.Resolve(Selection{Cluster: "devnet"}, nil)
	c.NoError(err)
	c.Len(endpoints, 1)
	c.Equal("api.devnet.solana.com", endpoints[0].Host)

	// A mapped alias resolves to the registered providers, in order.
	endpoints, err = registry.Resolve(Selection{Cluster: "mainnet"}, map[string][]string{
		"mainnet": {"p2", "p1"},
	})
	c.NoError(err)
	c.Len(endpoints, 2)
	c.Equal("p2", endpoints[0].Provider)
	c.Equal("p1", endpoints[1].Provider)

	// Explicit provider ids must all exist.
	_, err = registry.Resolve(Selection{ProviderIDs: []string{"p1", "ghost"}}, nil)
	c.Equal(KindNotFound, KindOf(err))

	// Unknown aliases are rejected.
	_, err = registry.Resolve(Selection{Cluster: "betanet"}, nil)
	c.Equal(KindInvalidRequest, KindOf(err))
}
