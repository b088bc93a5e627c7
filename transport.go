// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ipc

import (
	"context"
	"sort"
	"sync"
)

// Transport types
const (
	TransportZAP    = "zap"    // Length-prefixed frames over TCP or unix sockets, default
	TransportWS     = "ws"     // JSON frames over WebSocket
	TransportMemory = "memory" // In-process queues
	TransportJSON   = "json"   // JSON-RPC over HTTP, calls only
	TransportGRPC   = "grpc"   // Google RPC, requires build tag
)

// DefaultTransport is the default transport type (ZAP)
const DefaultTransport = TransportZAP

type dialFunc func(ctx context.Context, addr string, o *dialOptions) (Client, error)
type listenFunc func(addr string, o *serverOptions) (Server, error)

type transport struct {
	dial   dialFunc
	listen listenFunc
}

var (
	transportsMu sync.RWMutex
	transports   = map[string]transport{
		TransportZAP:    {dialZAP, listenZAP},
		TransportWS:     {dialWS, listenWS},
		TransportMemory: {dialMemory, listenMemory},
		TransportJSON:   {dialJSON, listenJSON},
	}
)

// registerTransport registers a new transport (used by build tags)
func registerTransport(name string, dial dialFunc, listen listenFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = transport{dial, listen}
}

func lookupTransport(name string) (transport, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	t, ok := transports[name]
	return t, ok
}

// AvailableTransports returns the sorted list of available transport types
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	_, ok := lookupTransport(name)
	return ok
}
