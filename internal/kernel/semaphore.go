package kernel

// semaphore is a counting semaphore built on a buffered channel. The
// scheduler uses one as a guard against a tick's worth of work overlapping
// with the next if a tick ever runs long.
type semaphore struct {
	slots chan struct{}
}

func newSemaphore(capacity int) *semaphore {
	return &semaphore{slots: make(chan struct{}, capacity)}
}

// Wait acquires a slot, blocking if the semaphore is at capacity.
func (s *semaphore) Wait() {
	s.slots <- struct{}{}
}

// Signal releases a slot. It is a no-op if nothing is held.
func (s *semaphore) Signal() {
	select {
	case <-s.slots:
	default:
	}
}

// TryWait attempts to acquire a slot without blocking, reporting success.
func (s *semaphore) TryWait() bool {
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}
