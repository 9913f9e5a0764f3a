package rabbitmq

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// fakeChannel mimics *amqp.Channel close semantics: listeners receive the
// reason of a fault, and are closed without a value on a graceful close.
type fakeChannel struct {
	mu         sync.Mutex
	closed     bool
	closeErr   error
	closeCalls int
	panicProbe bool
	listeners  []chan *amqp.Error
}

func (c *fakeChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, receiver)
	return receiver
}

func (c *fakeChannel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.panicProbe {
		panic("channel state unavailable")
	}
	return c.closed
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeCalls++
	if c.closeErr != nil {
		return c.closeErr
	}
	c.shutdown(nil)
	return nil
}

// fail simulates the broker closing the channel with reason.
func (c *fakeChannel) fail(reason *amqp.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown(reason)
}

func (c *fakeChannel) shutdown(reason *amqp.Error) {
	if c.closed {
		return
	}
	c.closed = true
	for _, l := range c.listeners {
		if reason != nil {
			l <- reason
		}
		close(l)
	}
	c.listeners = nil
}

func (c *fakeChannel) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

type fakeConnection struct {
	mu         sync.Mutex
	closed     bool
	closeErr   error
	closeCalls int
	channelErr error
	ch         *fakeChannel
	listeners  []chan *amqp.Error
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{ch: &fakeChannel{}}
}

func (c *fakeConnection) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channelErr != nil {
		return nil, c.channelErr
	}
	return c.ch, nil
}

func (c *fakeConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, receiver)
	return receiver
}

func (c *fakeConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	c.closeCalls++
	if c.closeErr != nil {
		c.mu.Unlock()
		return c.closeErr
	}
	c.mu.Unlock()
	c.shutdown(nil)
	return nil
}

// fail simulates the broker dropping the connection, which also closes its
// channel with the same reason.
func (c *fakeConnection) fail(reason *amqp.Error) {
	c.shutdown(reason)
}

func (c *fakeConnection) shutdown(reason *amqp.Error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	listeners := c.listeners
	c.listeners = nil
	c.mu.Unlock()

	c.ch.mu.Lock()
	c.ch.shutdown(reason)
	c.ch.mu.Unlock()

	for _, l := range listeners {
		if reason != nil {
			l <- reason
		}
		close(l)
	}
}

func (c *fakeConnection) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

// fakeDialer hands out connections in order and counts dials.
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConnection
	errs  []error
	dials int
}

func (d *fakeDialer) dial(ctx context.Context, url string) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.dials
	d.dials++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i < len(d.conns) {
		return d.conns[i], nil
	}
	return nil, errors.New("no connection scripted")
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
