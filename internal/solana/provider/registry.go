package provider

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"VolunTrack-Agent/internal/config"
	"VolunTrack-Agent/internal/solana"
	"VolunTrack-Agent/internal/solana/rpc"
)

// Registry manages a set of cluster clients keyed by human readable names.
type Registry struct {
	defaultCluster string
	clients        map[string]solana.Client
}

// NewRegistry loads cluster definitions and instantiates concrete clients.
// When no YAML file is configured the single endpoint from ChainConfig is
// registered under the configured cluster name.
func NewRegistry(cfg config.ChainConfig) (*Registry, error) {
	defs, err := solana.LoadClusterDefinitions(cfg.ChainConfig)
	if err != nil {
		return nil, err
	}

	clients := make(map[string]solana.Client)
	for name, cluster := range defs.Clusters {
		client, err := rpc.NewClient(rpc.Config{
			Cluster:  name,
			Endpoint: cluster.RPCURL,
			Timeout:  cfg.Timeout(),
			Notes:    cluster.Description,
		})
		if err != nil {
			return nil, fmt.Errorf("初始化集群 %s 失败: %w", name, err)
		}
		clients[name] = client
	}

	defaultCluster := strings.TrimSpace(cfg.Cluster)
	if defaultCluster == "" {
		if len(clients) == 0 {
			defaultCluster = "default"
		} else {
			names := make([]string, 0, len(clients))
			for name := range clients {
				names = append(names, name)
			}
			sort.Strings(names)
			defaultCluster = names[0]
		}
	}

	// A direct rpc_url (including the RPC_ENDPOINT_URL overlay) always wins
	// over whatever the definitions file assigned to the default cluster.
	if endpoint := strings.TrimSpace(cfg.RPCURL); endpoint != "" {
		client, err := rpc.NewClient(rpc.Config{Cluster: defaultCluster, Endpoint: endpoint, Timeout: cfg.Timeout()})
		if err != nil {
			return nil, err
		}
		if previous, ok := clients[defaultCluster]; ok && previous != nil {
			previous.Close()
		}
		clients[defaultCluster] = client
	}

	if len(clients) == 0 {
		return nil, errors.New("未配置任何集群的 RPC 端点")
	}
	if _, ok := clients[defaultCluster]; !ok {
		return nil, fmt.Errorf("默认集群 %s 未在配置中找到", defaultCluster)
	}

	return &Registry{defaultCluster: defaultCluster, clients: clients}, nil
}

// DefaultClient returns the client configured as default cluster.
func (r *Registry) DefaultClient() (solana.Client, error) {
	if r == nil {
		return nil, errors.New("未初始化的集群注册表")
	}
	client, ok := r.clients[r.defaultCluster]
	if !ok {
		return nil, fmt.Errorf("默认集群 %s 未在注册表中", r.defaultCluster)
	}
	return client, nil
}

// Client returns the cluster client identified by name.
func (r *Registry) Client(name string) (solana.Client, bool) {
	if r == nil {
		return nil, false
	}
	client, ok := r.clients[name]
	return client, ok
}

// Clusters returns the list of registered cluster names.
func (r *Registry) Clusters() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases all clients managed by the registry.
func (r *Registry) Close() {
	if r == nil {
		return
	}
	for name, client := range r.clients {
		if client != nil {
			client.Close()
		}
		delete(r.clients, name)
	}
}
