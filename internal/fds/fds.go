// Package fds implements the fd side-channel protocol: the Unix-domain
// stream socket, paired with every peer connection, that carries file
// descriptors via SCM_RIGHTS ancillary data one at a time. Isolating
// send/recv here means the rest of the system never touches ancillary
// data directly.
package fds

import (
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/vfsfabric/corevfs/vfserr"
)

// SendFD transmits fd as a single byte of payload plus an SCM_RIGHTS
// control message over conn. The sender is expected to call this once
// per fd, in the same order it assigned fd_ids on the reply channel,
// so the receiver's monotonic counter lines the two streams up.
func SendFD(conn *net.UnixConn, fd int) error {
	rights := unix.UnixRights(fd)
	_, _, err := conn.WriteMsgUnix([]byte{0}, rights, nil)
	if err != nil {
		return vfserr.Wrap(vfserr.Failed, err, "send fd over side channel")
	}
	return nil
}

// waiter is a one-shot channel a caller blocks on until the fd with a
// particular id arrives.
type waiter chan int

// Channel is the receiving end of a side socket: it maintains the
// fd_id counter and the outstanding map this fabric describes so
// that each waiter for id k receives exactly one fd, the kth the
// sender produced, regardless of arrival order (Testable Property 5).
type Channel struct {
	conn *net.UnixConn

	mu         sync.Mutex
	nextFDID   uint32
	stored     map[uint32]int
	waiters    map[uint32]waiter
	closed     bool
	recvErr    error
}

// NewChannel wraps conn and starts the background receive loop.
func NewChannel(conn *net.UnixConn) *Channel {
	c := &Channel{
		conn:    conn,
		stored:  make(map[uint32]int),
		waiters: make(map[uint32]waiter),
	}
	go c.recvLoop()
	return c
}

func (c *Channel) recvLoop() {
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))
	for {
		_, oobn, _, _, err := c.conn.ReadMsgUnix(buf, oob)
		if err != nil {
			c.mu.Lock()
			c.closed = true
			c.recvErr = err
			for id, w := range c.waiters {
				close(w)
				delete(c.waiters, id)
			}
			c.mu.Unlock()
			return
		}
		msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil || len(msgs) == 0 {
			continue
		}
		fdsGot, err := unix.ParseUnixRights(&msgs[0])
		if err != nil || len(fdsGot) == 0 {
			continue
		}
		c.deliver(fdsGot[0])
	}
}

// deliver associates the just-arrived fd with the next id in sequence:
// if a waiter is already registered for that id, hand it over directly
// (no intermediate store); otherwise hold it in the outstanding map
// until GetFD is called.
func (c *Channel) deliver(fd int) {
	c.mu.Lock()
	id := c.nextFDID
	c.nextFDID++
	if w, ok := c.waiters[id]; ok {
		delete(c.waiters, id)
		c.mu.Unlock()
		w <- fd
		close(w)
		return
	}
	c.stored[id] = fd
	c.mu.Unlock()
}

// GetFD returns the fd assigned id, blocking until it arrives if
// necessary.
func (c *Channel) GetFD(id uint32) (int, error) {
	c.mu.Lock()
	if fd, ok := c.stored[id]; ok {
		delete(c.stored, id)
		c.mu.Unlock()
		return fd, nil
	}
	if c.closed {
		err := c.recvErr
		c.mu.Unlock()
		return -1, vfserr.Wrap(vfserr.Closed, err, "side channel closed before fd %d arrived", id)
	}
	w := make(waiter, 1)
	c.waiters[id] = w
	c.mu.Unlock()

	fd, ok := <-w
	if !ok {
		return -1, vfserr.New(vfserr.Closed, "side channel closed while waiting for fd %d", id)
	}
	return fd, nil
}

// Close closes the underlying socket and every fd still held in the
// outstanding map — nothing transferred to a waiter, since ownership of
// those already passed to the caller. This matches the fd lifetime
// rule in "if the outstanding map is destroyed... any fd it
// still holds is closed."
func (c *Channel) Close() error {
	c.mu.Lock()
	for id, fd := range c.stored {
		unix.Close(fd)
		delete(c.stored, id)
	}
	for id, w := range c.waiters {
		close(w)
		delete(c.waiters, id)
	}
	c.mu.Unlock()
	return c.conn.Close()
}
