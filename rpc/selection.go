package rpc

import (
	"fmt"
	"strings"
)

// Cluster is a Solana network alias that resolves to a default public
// endpoint when no registered providers are named.
type Cluster string

const (
	ClusterMainnet  = Cluster("mainnet")
	ClusterTestnet  = Cluster("testnet")
	ClusterDevnet   = Cluster("devnet")
	ClusterLocalnet = Cluster("localnet")
)

var clusterURLs = map[Cluster]string{
	ClusterMainnet:  "https://api.mainnet-beta.solana.com",
	ClusterTestnet:  "https://api.testnet.solana.com",
	ClusterDevnet:   "https://api.devnet.solana.com",
	ClusterLocalnet: "http://localhost:8899",
}

func ParseCluster(s string) (Cluster, error) {
	c := Cluster(strings.ToLower(s))
	if _, ok := clusterURLs[c]; !ok {
		return "", fmt.Errorf("unknown cluster %q", s)
	}
	return c, nil
}

func (c Cluster) URL() string {
	return clusterURLs[c]
}

// Selection names the providers a dispatch should fan out to. Exactly one
// field may be set:
//   - Cluster: a network alias resolved to its default endpoint, unless the
//     registry maps the alias to a set of registered providers.
//   - ProviderIDs: registered provider ids, dispatched in the given order.
//   - URLs: ad-hoc raw endpoint URLs supplied by the caller.
type Selection struct {
	Cluster     string   `json:"cluster,omitempty"`
	ProviderIDs []string `json:"providers,omitempty"`
	URLs        []string `json:"urls,omitempty"`
}

func (s Selection) Validate() error {
	set := 0
	if s.Cluster != "" {
		set++
	}
	if len(s.ProviderIDs) > 0 {
		set++
	}
	if len(s.URLs) > 0 {
		set++
	}
	if set != 1 {
		return newError(KindInvalidRequest, "selection must name exactly one of cluster, providers, or urls")
	}
	return nil
}

// Resolve turns a selection into a concrete, non-empty endpoint list in
// policy order. clusterProviders maps network aliases to registered provider
// ids (from configuration); an alias with no mapping falls back to the
// cluster's public endpoint.
func (r *Registry) Resolve(sel Selection, clusterProviders map[string][]string) ([]Endpoint, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	switch {
	case sel.Cluster != "":
		cluster, err := ParseCluster(sel.Cluster)
		if err != nil {
			return nil, newError(KindInvalidRequest, "%v", err)
		}
		if ids := clusterProviders[string(cluster)]; len(ids) > 0 {
			return r.endpointsForIDs(ids)
		}
		ep, err := EndpointFromURL(cluster.URL())
		if err != nil {
			return nil, err
		}
		return []Endpoint{ep}, nil

	case len(sel.ProviderIDs) > 0:
		return r.endpointsForIDs(sel.ProviderIDs)

	default:
		endpoints := make([]Endpoint, 0, len(sel.URLs))
		for _, raw := range sel.URLs {
			ep, err := EndpointFromURL(raw)
			if err != nil {
				return nil, err
			}
			endpoints = append(endpoints, ep)
		}
		if len(endpoints) == 0 {
			return nil, newError(KindNoProviders, "selection resolved to an empty endpoint list")
		}
		return endpoints, nil
	}
}

func (r *Registry) endpointsForIDs(ids []string) ([]Endpoint, error) {
	endpoints := make([]Endpoint, 0, len(ids))
	for _, id := range ids {
		p, ok := r.Get(id)
		if !ok {
			return nil, newError(KindNotFound, "unknown provider %q", id)
		}
		ep, err := p.Endpoint()
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, ep)
	}
	if len(endpoints) == 0 {
		return nil, newError(KindNoProviders, "selection resolved to an empty endpoint list")
	}
	return endpoints, nil
}
