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

package sync

import (
	"container/heap"
	"sync"

	"github.com/sage-x-project/meshnet/meta"
)

// Outgoing is one packet queued for delivery, annotated with the priority
// and direction of the meta it was drawn from (spec §4.6 "Priority
// queue: response messages are ordered by meta priority (high→low), and
// within the same priority by direction policy").
type Outgoing struct {
	Packet    []byte
	Priority  uint8
	Direction meta.Direction
}

// directionRank breaks priority ties: ASC before DESC before RANDOM is an
// arbitrary but stable total order, chosen only so the queue never needs
// to compare two RANDOM entries against each other for ordering purposes.
func directionRank(d meta.Direction) int {
	switch d {
	case meta.DirectionASC:
		return 0
	case meta.DirectionDESC:
		return 1
	default:
		return 2
	}
}

// outgoingHeap is a max-heap on (Priority, direction rank); sequence
// breaks ties between otherwise-equal entries to keep the queue stable.
type outgoingHeap struct {
	items []Outgoing
	seq   []int
	next  int
}

func (h outgoingHeap) Len() int { return len(h.items) }
func (h outgoingHeap) Less(i, j int) bool {
	if h.items[i].Priority != h.items[j].Priority {
		return h.items[i].Priority > h.items[j].Priority
	}
	ri, rj := directionRank(h.items[i].Direction), directionRank(h.items[j].Direction)
	if ri != rj {
		return ri < rj
	}
	return h.seq[i] < h.seq[j]
}
func (h outgoingHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.seq[i], h.seq[j] = h.seq[j], h.seq[i]
}
func (h *outgoingHeap) Push(x interface{}) {
	h.items = append(h.items, x.(Outgoing))
	h.seq = append(h.seq, h.next)
	h.next++
}
func (h *outgoingHeap) Pop() interface{} {
	n := len(h.items)
	item := h.items[n-1]
	h.items = h.items[:n-1]
	h.seq = h.seq[:n-1]
	return item
}

// PriorityQueue orders queued outgoing sync responses by meta priority,
// then direction, for one peer's send loop.
type PriorityQueue struct {
	mu   sync.Mutex
	heap outgoingHeap
}

// NewPriorityQueue creates an empty queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{}
}

// Push enqueues one outgoing packet.
func (q *PriorityQueue) Push(o Outgoing) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.heap, o)
}

// Pop removes and returns the highest-priority queued packet, reporting
// false when the queue is empty.
func (q *PriorityQueue) Pop() (Outgoing, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return Outgoing{}, false
	}
	return heap.Pop(&q.heap).(Outgoing), true
}

// Len reports the number of queued packets.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}
