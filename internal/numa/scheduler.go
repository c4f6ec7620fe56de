// Package numa balances subprocesses across NUMA nodes at dispatch time.
package numa

import (
	"sort"
	"sync"
)

// DefaultMaxWorkersPerNode is the per-node load at which allocation starts
// preferring other nodes.
const DefaultMaxWorkersPerNode = 2

// NodeStatus is a snapshot of one node's load.
type NodeStatus struct {
	Busy  int `json:"busy"`
	Total int `json:"total"`
}

// Scheduler tracks how many running jobs are bound to each node. It is safe
// for concurrent use.
type Scheduler struct {
	mu         sync.Mutex
	load       []int
	maxPerNode int
}

// New creates a scheduler for totalNodes nodes. A non-positive maxPerNode
// selects DefaultMaxWorkersPerNode.
func New(totalNodes, maxPerNode int) *Scheduler {
	if totalNodes < 0 {
		totalNodes = 0
	}
	if maxPerNode <= 0 {
		maxPerNode = DefaultMaxWorkersPerNode
	}
	return &Scheduler{
		load:       make([]int, totalNodes),
		maxPerNode: maxPerNode,
	}
}

// TotalNodes returns the number of nodes the scheduler balances across.
func (s *Scheduler) TotalNodes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.load)
}

// MaxPerNode returns the soft per-node cap.
func (s *Scheduler) MaxPerNode() int {
	return s.maxPerNode
}

// Allocate picks the least-loaded node that is still below the cap. When
// every node is at or above the cap it picks the least-loaded node anyway, so
// the cap only steers placement. ok is false only when there are no nodes.
func (s *Scheduler) Allocate() (node int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.load) == 0 {
		return -1, false
	}

	best := -1
	for id, load := range s.load {
		if load >= s.maxPerNode {
			continue
		}
		if best == -1 || load < s.load[best] {
			best = id
		}
	}
	if best == -1 {
		best = 0
		for id, load := range s.load {
			if load < s.load[best] {
				best = id
			}
		}
	}

	s.load[best]++
	return best, true
}

// Release decrements the load of a node previously returned by Allocate.
// Unknown ids and idle nodes are ignored.
func (s *Scheduler) Release(node int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node < 0 || node >= len(s.load) || s.load[node] == 0 {
		return
	}
	s.load[node]--
}

// ShouldUseNuma reports whether binding is worthwhile for jobCount jobs.
// Binding is skipped when there are fewer jobs than nodes.
func (s *Scheduler) ShouldUseNuma(jobCount int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.load) > 0 && jobCount >= len(s.load)
}

// Status returns the load of every node, keyed by node id.
func (s *Scheduler) Status() map[int]NodeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := make(map[int]NodeStatus, len(s.load))
	for id, load := range s.load {
		status[id] = NodeStatus{Busy: load, Total: s.maxPerNode}
	}
	return status
}

// Available returns the ids of nodes with no bound job.
func (s *Scheduler) Available() []int {
	return s.partition(func(load int) bool { return load == 0 })
}

// Busy returns the ids of nodes with at least one bound job.
func (s *Scheduler) Busy() []int {
	return s.partition(func(load int) bool { return load > 0 })
}

func (s *Scheduler) partition(keep func(load int) bool) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.load))
	for id, load := range s.load {
		if keep(load) {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}
