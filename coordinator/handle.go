package coordinator

// Handle is one waiter's view of a shared computation. Every handle
// attached to the same pending request receives the identical Result.
type Handle struct {
	coord *Coordinator
	p     *pending
	id    uint64
	ch    chan Result
}

// Done returns a channel that delivers exactly one Result when the
// computation completes, fails, or is cancelled.
func (h *Handle) Done() <-chan Result {
	return h.ch
}

// Cancel detaches this waiter. The shared computation is only cancelled
// when its last waiter detaches; if the collaborator cannot be
// interrupted the computation completes and is discarded.
func (h *Handle) Cancel() {
	h.coord.detach(h.p, h.id)
}
