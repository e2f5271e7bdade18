// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package connectivity

import (
	"context"
	"errors"
	"fmt"
	"slices"

	psnet "github.com/shirou/gopsutil/v3/net"
)

var (
	// ErrNoNetworkInterface is returned by [InterfaceProbe] when no
	// non-loopback interface is up with an address.
	ErrNoNetworkInterface = errors.New("no usable network interface")
	// ErrBackendUnreachable is returned by [BackendProbe] when the backend
	// does not answer.
	ErrBackendUnreachable = errors.New("backend unreachable")
)

// Probe checks one aspect of connectivity. A nil error means reachable.
type Probe interface {
	Name() string
	Probe(ctx context.Context) error
}

// InterfaceProbe succeeds when the host has a non-loopback interface that is
// up and has an address.
type InterfaceProbe struct {
	interfaces func(ctx context.Context) (psnet.InterfaceStatList, error)
}

func NewInterfaceProbe() *InterfaceProbe {
	return &InterfaceProbe{interfaces: psnet.InterfacesWithContext}
}

func (p *InterfaceProbe) Name() string { return "interface" }

func (p *InterfaceProbe) Probe(ctx context.Context) error {
	list, err := p.interfaces(ctx)
	if err != nil {
		return fmt.Errorf("listing interfaces: %w", err)
	}

	for _, iface := range list {
		if slices.Contains(iface.Flags, "loopback") || !slices.Contains(iface.Flags, "up") {
			continue
		}
		if len(iface.Addrs) > 0 {
			return nil
		}
	}

	return ErrNoNetworkInterface
}

// Pinger is the part of the backend adapter the probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendProbe succeeds when the remote backend answers a ping.
type BackendProbe struct {
	pinger Pinger
}

func NewBackendProbe(pinger Pinger) *BackendProbe {
	return &BackendProbe{pinger: pinger}
}

func (p *BackendProbe) Name() string { return "backend" }

func (p *BackendProbe) Probe(ctx context.Context) error {
	if err := p.pinger.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnreachable, err)
	}
	return nil
}
