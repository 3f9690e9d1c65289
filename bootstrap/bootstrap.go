// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Package bootstrap resolves the static seed addresses a node uses to find
// its first peers, the way a gossip overlay has no other way to get off the
// ground: a short list of well-known (host, port) pairs, resolved to IPs
// asynchronously and re-resolved on a timer until everything resolves.
package bootstrap

import (
	"bufio"
	"context"
	"math/rand"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sage-x-project/meshnet/internal/logger"
)

// DefaultRetryInterval is how often Bootstrap re-attempts to resolve any
// address that hasn't resolved yet.
const DefaultRetryInterval = 300 * time.Second

// Address is one unresolved seed entry.
type Address struct {
	Host string
	Port int
}

// Candidate is one resolved seed peer.
type Candidate struct {
	IP   string
	Port int
}

func (a Address) String() string { return net.JoinHostPort(a.Host, strconv.Itoa(a.Port)) }

// Bootstrap resolves a fixed list of seed addresses into live candidates.
type Bootstrap struct {
	log logger.Logger

	mu         sync.Mutex
	candidates map[Address]*Candidate

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a Bootstrap over addresses, all initially unresolved.
func New(addresses []Address, log logger.Logger) *Bootstrap {
	candidates := make(map[Address]*Candidate, len(addresses))
	for _, a := range addresses {
		candidates[a] = nil
	}
	return &Bootstrap{log: log, candidates: candidates, stop: make(chan struct{})}
}

// LoadAddressesFromFile reads HOST PORT pairs, one per line, ignoring blank
// lines and lines starting with '#'. A missing or unreadable file yields an
// empty list rather than an error, matching the original loader's
// best-effort semantics.
func LoadAddressesFromFile(path string) []Address {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var addrs []Address
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		port, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		addrs = append(addrs, Address{Host: fields[0], Port: port})
	}
	return addrs
}

// AllResolved reports whether every address has a resolved candidate.
func (b *Bootstrap) AllResolved() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.candidates {
		if c == nil {
			return false
		}
	}
	return true
}

// Candidates returns every resolved candidate in random order.
func (b *Bootstrap) Candidates() []Candidate {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Candidate, 0, len(b.candidates))
	for _, c := range b.candidates {
		if c != nil {
			out = append(out, *c)
		}
	}
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Progress reports (resolved, total).
func (b *Bootstrap) Progress() (resolved, total int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.candidates {
		if c != nil {
			resolved++
		}
	}
	return resolved, len(b.candidates)
}

// Reset discards every resolved candidate, forcing the next Resolve to
// re-attempt them all.
func (b *Bootstrap) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for a := range b.candidates {
		b.candidates[a] = nil
	}
}

// Resolve attempts to resolve every unresolved address concurrently,
// returning once every attempt has either succeeded or failed.
func (b *Bootstrap) Resolve(ctx context.Context) error {
	b.mu.Lock()
	var pending []Address
	for a, c := range b.candidates {
		if c == nil {
			pending = append(pending, a)
		}
	}
	b.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, addr := range pending {
		addr := addr
		g.Go(func() error {
			b.resolveOne(ctx, addr)
			return nil
		})
	}
	return g.Wait()
}

func (b *Bootstrap) resolveOne(ctx context.Context, addr Address) {
	if ip := net.ParseIP(addr.Host); ip != nil {
		b.set(addr, &Candidate{IP: ip.String(), Port: addr.Port})
		return
	}

	resolver := net.DefaultResolver
	ips, err := resolver.LookupHost(ctx, addr.Host)
	if err != nil || len(ips) == 0 {
		if b.log != nil {
			b.log.Warn("bootstrap: could not resolve seed address",
				logger.String("host", addr.Host), logger.Int("port", addr.Port))
		}
		return
	}

	if b.log != nil {
		b.log.Info("bootstrap: resolved seed address",
			logger.String("host", addr.Host), logger.String("ip", ips[0]))
	}
	b.set(addr, &Candidate{IP: ips[0], Port: addr.Port})
}

func (b *Bootstrap) set(addr Address, c *Candidate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.candidates[addr] = c
}

// Start runs Resolve once immediately and then on every interval tick until
// ctx is cancelled or Stop is called, skipping ticks once everything has
// resolved.
func (b *Bootstrap) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.Resolve(ctx); err != nil && b.log != nil {
			b.log.Warn("bootstrap: initial resolve failed", logger.Error(err))
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stop:
				return
			case <-ticker.C:
				if b.AllResolved() {
					continue
				}
				if err := b.Resolve(ctx); err != nil && b.log != nil {
					b.log.Warn("bootstrap: periodic resolve failed", logger.Error(err))
				}
			}
		}
	}()
}

// Stop halts the periodic resolve loop and waits for it to exit.
func (b *Bootstrap) Stop() {
	close(b.stop)
	b.wg.Wait()
}

