package redis

import "sync"

// registry is the id-indexed, shape-partitioned table of live Commands for
// one Engine. reserve is called from caller goroutines (Command,
// CommandSync, CommandLoop); lookup/remove/drain are called only from the
// Engine's loop goroutine. mu guards the map against that cross-goroutine
// access — see spec.md §4.2/§5.
//
// Partitioning by shape is a bookkeeping nicety here (Go's interface{}
// already erases static type, unlike the C++ template-per-shape maps the
// source used) but is kept because spec.md §4.2 calls out type-specialized
// lookup as a design requirement, and because it keeps each partition small
// for the common case of many concurrent one-shot commands of one shape.
type registry struct {
	mu         sync.Mutex
	nextID     uint64
	partitions map[ReplyShape]map[uint64]*Command
}

func newRegistry() *registry {
	return &registry{
		partitions: make(map[ReplyShape]map[uint64]*Command),
	}
}

// reserve assigns the next id and inserts cmd into its shape partition
// atomically with the assignment, per spec.md §4.2.
func (r *registry) reserve(cmd *Command) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	cmd.id = id
	part, ok := r.partitions[cmd.shape]
	if !ok {
		part = make(map[uint64]*Command)
		r.partitions[cmd.shape] = part
	}
	part[id] = cmd
	return id
}

// lookup returns the Command for (id, shape), or (nil, false) if it is no
// longer registered — e.g. because it was already freed.
func (r *registry) lookup(id uint64, shape ReplyShape) (*Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	part, ok := r.partitions[shape]
	if !ok {
		return nil, false
	}
	cmd, ok := part[id]
	return cmd, ok
}

// remove is the sole de-registration path. Idempotent: removing an id not
// present is a no-op, which is what makes Free() safe to call more than
// once (spec.md §4.4).
func (r *registry) remove(id uint64, shape ReplyShape) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if part, ok := r.partitions[shape]; ok {
		delete(part, id)
	}
}

// drain removes and returns every live Command, used during Engine
// shutdown to stop holding references to records nobody will ever free.
func (r *registry) drain() []*Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*Command
	for _, part := range r.partitions {
		for id, cmd := range part {
			all = append(all, cmd)
			delete(part, id)
		}
	}
	return all
}
