package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"candleflow/internal/logger"
)

// NodeStatus reflects the last heartbeat outcome.
type NodeStatus string

const (
	NodeHealthy     NodeStatus = "healthy"
	NodeDegraded    NodeStatus = "degraded"
	NodeUnreachable NodeStatus = "unreachable"
)

const unreachableAfter = 3 // consecutive probe failures

type node struct {
	address       string
	status        NodeStatus
	lastHeartbeat time.Time
	failures      int
}

// NodeInfo is a read-only registry snapshot entry.
type NodeInfo struct {
	Address       string
	Status        NodeStatus
	LastHeartbeat time.Time
}

// Registry tracks worker nodes and their heartbeat-derived health,
// independent of task execution.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*node
}

func NewRegistry(addresses ...string) *Registry {
	r := &Registry{nodes: make(map[string]*node)}
	for _, addr := range addresses {
		r.Register(addr)
	}
	return r
}

func (r *Registry) Register(address string) {
	address = strings.TrimSpace(address)
	if address == "" {
		return
	}
	r.mu.Lock()
	if _, ok := r.nodes[address]; !ok {
		// optimistic until the first probe says otherwise
		r.nodes[address] = &node{address: address, status: NodeHealthy}
	}
	r.mu.Unlock()
}

// Healthy returns the addresses currently eligible for dispatch.
func (r *Registry) Healthy() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.nodes))
	for _, n := range r.nodes {
		if n.status == NodeHealthy {
			out = append(out, n.address)
		}
	}
	return out
}

func (r *Registry) Snapshot() []NodeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NodeInfo, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, NodeInfo{Address: n.address, Status: n.status, LastHeartbeat: n.lastHeartbeat})
	}
	return out
}

func (r *Registry) recordSuccess(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.nodes[address]
	if n == nil {
		return
	}
	n.status = NodeHealthy
	n.failures = 0
	n.lastHeartbeat = time.Now()
}

func (r *Registry) recordFailure(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.nodes[address]
	if n == nil {
		return
	}
	n.failures++
	if n.failures >= unreachableAfter {
		n.status = NodeUnreachable
	} else {
		n.status = NodeDegraded
	}
}

// markIncompatible demotes a node whose RPC schema does not match ours.
func (r *Registry) markIncompatible(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := r.nodes[address]; n != nil {
		n.status = NodeDegraded
	}
}

// StartHeartbeat probes every node at the given interval until ctx ends.
func (r *Registry) StartHeartbeat(ctx context.Context, client *Client, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.probeAll(ctx, client)
			}
		}
	}()
}

func (r *Registry) probeAll(ctx context.Context, client *Client) {
	for _, info := range r.Snapshot() {
		health, err := client.Health(ctx, info.Address)
		if err != nil {
			r.recordFailure(info.Address)
			logger.Debugf("heartbeat failed for node %s: %v", info.Address, err)
			continue
		}
		if health.SchemaID != SchemaID {
			r.markIncompatible(info.Address)
			logger.Warnf("node %s speaks schema %q, want %q", info.Address, health.SchemaID, SchemaID)
			continue
		}
		r.recordSuccess(info.Address)
	}
}
