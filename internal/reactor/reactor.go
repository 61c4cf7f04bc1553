// Package reactor implements the level-triggered readiness I/O core
// shared by all three processes (§4.6): a thin wrapper around Linux
// epoll, registering sockets by their integer file descriptor. It is the
// one place this repository reaches past the examples' stack for a
// systems primitive none of them implement directly — golang.org/x/sys
// already sits, as an indirect dependency, under several of the pack's
// own go.mod files (see DESIGN.md), and its raw epoll bindings are the
// natural fit for "register sockets by fd, poll, dispatch" (§4.6).
//
// Every socket registered is non-blocking. The reactor itself never
// spawns a goroutine per connection — all user code runs between one
// poll() call and the next, on the single goroutine that owns the
// Reactor (§5).
package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// EventMask is a bitmask of readiness conditions to watch for.
type EventMask uint32

const (
	Readable EventMask = unix.EPOLLIN
	Writable EventMask = unix.EPOLLOUT
)

// Handler is invoked when a registered fd becomes ready. events is the
// EventMask of conditions that were observed.
type Handler func(fd int, events EventMask)

// Reactor wraps one epoll instance. Not safe for concurrent use from
// more than one goroutine — by design, exactly one goroutine drives it
// (§5 "single-threaded cooperative").
type Reactor struct {
	epfd     int
	handlers map[int]Handler
	events   []unix.EpollEvent
}

// New creates a Reactor backed by a fresh epoll instance.
func New() (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Reactor{
		epfd:     epfd,
		handlers: make(map[int]Handler),
		events:   make([]unix.EpollEvent, 256),
	}, nil
}

// Register starts watching fd for the given readiness conditions,
// invoking handler on each level-triggered wakeup. fd must already be
// non-blocking.
func (r *Reactor) Register(fd int, mask EventMask, handler Handler) error {
	ev := unix.EpollEvent{Events: uint32(mask), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return err
	}
	r.handlers[fd] = handler
	return nil
}

// Modify updates the watched readiness conditions for an already
// registered fd (e.g. adding Writable while a cork buffer drains).
func (r *Reactor) Modify(fd int, mask EventMask) error {
	ev := unix.EpollEvent{Events: uint32(mask), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

// Deregister stops watching fd. Safe to call even if fd was already
// closed out from under the reactor (ENOENT is ignored).
func (r *Reactor) Deregister(fd int) error {
	delete(r.handlers, fd)
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

// Run performs exactly one EpollWait pass and dispatches to each ready
// fd's handler, then returns. timeout bounds how long Run may block if
// nothing is ready (§5: "poll has a timeout (≤1 s)", used to drive
// periodic republication/snapshot wakeups even when idle).
func (r *Reactor) Run(timeout time.Duration) error {
	ms := int(timeout / time.Millisecond)
	n, err := unix.EpollWait(r.epfd, r.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return err
	}
	for i := 0; i < n; i++ {
		ev := r.events[i]
		if h, ok := r.handlers[int(ev.Fd)]; ok {
			h(int(ev.Fd), EventMask(ev.Events))
		}
	}
	return nil
}

// Close releases the underlying epoll fd.
func (r *Reactor) Close() error {
	return unix.Close(r.epfd)
}
