// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package connectivity

import (
	"context"
	"errors"
	"testing"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sndie3/LABAN/internal/logger"
)

type stubProbe struct {
	err   error
	calls int
}

func (s *stubProbe) Name() string { return "stub" }

func (s *stubProbe) Probe(context.Context) error {
	s.calls++
	return s.err
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestInterfaceProbe(t *testing.T) {
	tests := []struct {
		name    string
		list    psnet.InterfaceStatList
		listErr error
		wantErr error
	}{
		{
			name: "ethernet up",
			list: psnet.InterfaceStatList{
				{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
				{Name: "eth0", Flags: []string{"up", "broadcast"}, Addrs: psnet.InterfaceAddrList{{Addr: "10.0.0.2/24"}}},
			},
		},
		{
			name: "only loopback",
			list: psnet.InterfaceStatList{
				{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
			},
			wantErr: ErrNoNetworkInterface,
		},
		{
			name: "wifi down",
			list: psnet.InterfaceStatList{
				{Name: "wlan0", Flags: []string{"broadcast"}, Addrs: psnet.InterfaceAddrList{{Addr: "10.0.0.2/24"}}},
			},
			wantErr: ErrNoNetworkInterface,
		},
		{
			name: "up without address",
			list: psnet.InterfaceStatList{
				{Name: "wlan0", Flags: []string{"up"}},
			},
			wantErr: ErrNoNetworkInterface,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &InterfaceProbe{interfaces: func(context.Context) (psnet.InterfaceStatList, error) {
				return tt.list, tt.listErr
			}}
			err := p.Probe(context.Background())
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestInterfaceProbe_ListError(t *testing.T) {
	p := &InterfaceProbe{interfaces: func(context.Context) (psnet.InterfaceStatList, error) {
		return nil, errors.New("permission denied")
	}}
	assert.Error(t, p.Probe(context.Background()))
}

func TestBackendProbe(t *testing.T) {
	ok := NewBackendProbe(pingerFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok.Probe(context.Background()))

	down := NewBackendProbe(pingerFunc(func(context.Context) error { return errors.New("dial tcp: refused") }))
	assert.ErrorIs(t, down.Probe(context.Background()), ErrBackendUnreachable)
}

func TestProber_CheckSignalsMonitor(t *testing.T) {
	m := NewMonitor(false, logger.Nop())
	var fires []bool
	m.Subscribe(func(online bool) { fires = append(fires, online) })

	iface := &stubProbe{}
	backend := &stubProbe{}
	p := NewProber(m, time.Hour, time.Second, logger.Nop(), iface, backend)

	assert.True(t, p.Check(context.Background()))
	assert.True(t, m.IsOnline())

	backend.err = errors.New("503")
	assert.False(t, p.Check(context.Background()))
	assert.False(t, m.IsOnline())

	// a failing first probe short-circuits the rest
	iface.err = ErrNoNetworkInterface
	calls := backend.calls
	assert.False(t, p.Check(context.Background()))
	assert.Equal(t, calls, backend.calls)

	assert.Equal(t, []bool{true, false, false}, fires)
}

func TestProber_CancelledCheckKeepsState(t *testing.T) {
	m := NewMonitor(true, logger.Nop())
	fired := 0
	m.Subscribe(func(bool) { fired++ })

	p := NewProber(m, time.Hour, time.Second, logger.Nop(), NewBackendProbe(pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, p.Check(ctx))
	assert.True(t, m.IsOnline())
	assert.Zero(t, fired)
}

func TestProber_StartRunsImmediately(t *testing.T) {
	m := NewMonitor(false, logger.Nop())
	p := NewProber(m, time.Hour, time.Second, logger.Nop(), &stubProbe{})

	p.Start(context.Background())
	defer p.Stop()

	require.Eventually(t, m.IsOnline, time.Second, time.Millisecond)
}
