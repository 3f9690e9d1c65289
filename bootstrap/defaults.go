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

package bootstrap

// defaultAddresses ships with a small set of well-known seed nodes so a
// fresh node has somewhere to start without an operator-supplied peers
// file. Deployments are expected to override this via config.
var defaultAddresses = []Address{
	{Host: "seed1.meshnet.sage-x.dev", Port: 7070},
	{Host: "seed2.meshnet.sage-x.dev", Port: 7070},
	{Host: "seed3.meshnet.sage-x.dev", Port: 7070},
}

// DefaultAddresses returns the built-in seed address list.
func DefaultAddresses() []Address {
	out := make([]Address, len(defaultAddresses))
	copy(out, defaultAddresses)
	return out
}
