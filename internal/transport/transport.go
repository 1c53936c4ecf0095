// Package transport implements a collective transport: barrier, broadcast,
// all-gather (fixed and variable size), and tagged non-blocking
// point-to-point send/receive over a fixed group of peers.
//
// The substrate is left unspecified deliberately — a thin abstraction,
// not a wire format — so peers here are goroutines in a single process,
// each addressed by rank and each owning an inbox channel, in the same
// shape sanderblue-algorithms' ring_all_reduce.go uses for its ring
// participants (a Node per rank with In/Out channels driven by a
// sync.WaitGroup), combined with a fixed-goroutine WorkerPool idiom of
// buffered channels and sync.Once shutdown.
package transport

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrClosed is returned by any collective called after the Group has been
// closed.
var ErrClosed = errors.New("transport: group closed")

// rendezvous is one collective call's synchronization point: every peer
// posts its contribution and waits for the collective's result.
type rendezvous struct {
	mu       sync.Mutex
	cond     *sync.Cond
	arrived  int
	total    int
	payloads [][]byte
	sizes    []int
	result   [][]byte
	done     bool
}

func newRendezvous(total int) *rendezvous {
	r := &rendezvous{total: total, payloads: make([][]byte, total), sizes: make([]int, total)}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// join posts payload (nil for a pure barrier) and blocks until every peer
// has joined, then returns the ordered set of every peer's payload. The
// last arriving peer wakes everyone else — no peer depends on arrival
// order among the others.
func (r *rendezvous) join(rank int, payload []byte) [][]byte {
	r.mu.Lock()
	r.payloads[rank] = payload
	r.sizes[rank] = len(payload)
	r.arrived++
	if r.arrived == r.total {
		r.done = true
		r.result = append([][]byte(nil), r.payloads...)
		r.cond.Broadcast()
	} else {
		for !r.done {
			r.cond.Wait()
		}
	}
	result := r.result
	r.mu.Unlock()
	return result
}

// mailbox is one peer's inbox for tagged point-to-point messages.
type mailbox struct {
	mu   sync.Mutex
	msgs map[msgKey]chan []byte
}

type msgKey struct {
	from, tag int
}

func newMailbox() *mailbox {
	return &mailbox{msgs: make(map[msgKey]chan []byte)}
}

func (m *mailbox) channelFor(from, tag int) chan []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := msgKey{from: from, tag: tag}
	ch, ok := m.msgs[key]
	if !ok {
		ch = make(chan []byte, 1)
		m.msgs[key] = ch
	}
	return ch
}

// Group is a fixed set of peers that can run collectives against each
// other. It is safe for concurrent use by every peer's own goroutine, one
// call at a time per peer, matching a bulk-synchronous execution model.
type Group struct {
	size      int
	mailboxes []*mailbox

	seqMu sync.Mutex
	live  map[int]*rendezvous

	perRankMu  sync.Mutex
	perRankSeq map[int]int

	closeOnce sync.Once
	closed    chan struct{}
}

// NewGroup creates a Group of the given size. Peers are addressed by rank
// in [0, size).
func NewGroup(size int) *Group {
	g := &Group{
		size:      size,
		mailboxes: make([]*mailbox, size),
		live:      make(map[int]*rendezvous),
		closed:    make(chan struct{}),
	}
	for i := range g.mailboxes {
		g.mailboxes[i] = newMailbox()
	}
	return g
}

// Size returns the number of peers in the group.
func (g *Group) Size() int {
	return g.size
}

// Close unblocks any collective that has not yet completed and makes
// every subsequent collective call return ErrClosed. A pending Isend or
// Irecv whose channel is not ready completes with ErrClosed.
func (g *Group) Close() {
	g.closeOnce.Do(func() {
		close(g.closed)
	})
}

// rendezvousFor returns the rendezvous point for the collective identified
// by seq, creating it on first arrival. collective deletes it once the
// highest rank's call returns, by which point every peer has joined, so
// the live map stays small even though seq numbers keep increasing across
// iterations.
func (g *Group) rendezvousFor(seq int) *rendezvous {
	g.seqMu.Lock()
	defer g.seqMu.Unlock()
	r, ok := g.live[seq]
	if !ok {
		r = newRendezvous(g.size)
		g.live[seq] = r
	}
	return r
}

func (g *Group) forgetRendezvous(seq int) {
	g.seqMu.Lock()
	delete(g.live, seq)
	g.seqMu.Unlock()
}

// Barrier blocks the calling peer until every peer in the group has called
// Barrier for this point in the sequence.
func (g *Group) Barrier(ctx context.Context, rank int) error {
	_, err := g.collective(ctx, rank, nil)
	return err
}

// Broadcast sends payload (only meaningful from the root; ignored from
// everyone else) to every peer — every peer receives the same []byte.
// Root is conventionally 0 (the coordinator) but any rank may be passed.
func (g *Group) Broadcast(ctx context.Context, rank, root int, payload []byte) ([]byte, error) {
	all, err := g.collective(ctx, rank, payload)
	if err != nil {
		return nil, err
	}
	return all[root], nil
}

// AllgatherFixed gathers every peer's equal-length payload and returns the
// concatenation in rank order.
func (g *Group) AllgatherFixed(ctx context.Context, rank int, payload []byte) ([]byte, error) {
	all, err := g.collective(ctx, rank, payload)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(payload)*len(all))
	for _, p := range all {
		out = append(out, p...)
	}
	return out, nil
}

// AllgatherVariable gathers every peer's variably-sized payload and
// returns both the concatenation in rank order and the per-rank sizes, so
// every peer can reconstruct the individual payloads.
func (g *Group) AllgatherVariable(ctx context.Context, rank int, payload []byte) (data []byte, sizes []int, err error) {
	all, err := g.collective(ctx, rank, payload)
	if err != nil {
		return nil, nil, err
	}
	sizes = make([]int, len(all))
	total := 0
	for i, p := range all {
		sizes[i] = len(p)
		total += len(p)
	}
	data = make([]byte, 0, total)
	for _, p := range all {
		data = append(data, p...)
	}
	return data, sizes, nil
}

// collective runs one rendezvous-style collective: every peer supplies its
// payload (nil for Barrier) and all peers get back the full ordered set.
func (g *Group) collective(ctx context.Context, rank int, payload []byte) ([][]byte, error) {
	select {
	case <-g.closed:
		return nil, ErrClosed
	default:
	}

	seq := g.groupSeq(rank)
	r := g.rendezvousFor(seq)

	type joinResult struct {
		out [][]byte
	}
	resultCh := make(chan joinResult, 1)
	go func() {
		resultCh <- joinResult{out: r.join(rank, payload)}
	}()

	select {
	case res := <-resultCh:
		if rank == g.size-1 {
			// Deterministic single deleter: forgetting from the
			// highest-rank arrival keeps this independent of arrival
			// order, since every rank always calls the same sequence of
			// collectives.
			g.forgetRendezvous(seq)
		}
		return res.out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.closed:
		return nil, ErrClosed
	}
}

// groupSeq assigns each *logical* collective call one seq number shared by
// all ranks. Every rank derives the value by counting its own calls, and
// since all peers issue collectives in lockstep they arrive at the same
// number — this avoids a broadcast-the-seq round trip.
func (g *Group) groupSeq(rank int) int {
	g.perRankMu.Lock()
	defer g.perRankMu.Unlock()
	if g.perRankSeq == nil {
		g.perRankSeq = make(map[int]int)
	}
	s := g.perRankSeq[rank]
	g.perRankSeq[rank] = s + 1
	return s
}

// Isend posts a non-blocking send of payload from rank to dest tagged tag.
// The call returns immediately; use Wait to block until delivery.
func (g *Group) Isend(rank, dest, tag int, payload []byte) *Request {
	ch := g.mailboxes[dest].channelFor(rank, tag)
	req := &Request{done: make(chan error, 1)}
	go func() {
		select {
		case ch <- payload:
			req.done <- nil
		case <-g.closed:
			req.done <- ErrClosed
		}
	}()
	return req
}

// Irecv posts a non-blocking receive at rank from source tagged tag. Wait
// on the returned Request yields the received payload via Request.Bytes
// after it completes.
func (g *Group) Irecv(rank, source, tag int) *Request {
	ch := g.mailboxes[rank].channelFor(source, tag)
	req := &Request{done: make(chan error, 1)}
	go func() {
		select {
		case payload := <-ch:
			req.bytes = payload
			req.done <- nil
		case <-g.closed:
			req.done <- ErrClosed
		}
	}()
	return req
}

// Request is a handle to a posted Isend or Irecv.
type Request struct {
	done  chan error
	bytes []byte
}

// Wait blocks until the request completes and returns its error, if any.
func (r *Request) Wait(ctx context.Context) error {
	select {
	case err := <-r.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Bytes returns the payload received by an Irecv request. Only valid after
// Wait has returned nil.
func (r *Request) Bytes() []byte {
	return r.bytes
}
