package rabbitmq

import (
	"context"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection is the transport link to the broker. It is satisfied by
// *amqp.Connection through an adapter and by fakes in tests.
type Connection interface {
	// Channel opens a new channel on the connection.
	Channel() (Channel, error)

	// NotifyClose registers a listener that receives the close reason, or
	// is closed without a value on a graceful close.
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error

	// IsClosed reports whether the connection has been closed.
	IsClosed() bool

	// Close closes the connection and all of its channels.
	Close() error
}

// Channel is a logical stream inside a Connection.
// *amqp.Channel satisfies it directly.
type Channel interface {
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	IsClosed() bool
	Close() error
}

// Dialer opens a Connection to url.
type Dialer func(ctx context.Context, url string) (Connection, error)

// amqpConnection adapts *amqp.Connection to Connection.
type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// NewDialer returns a Dialer backed by amqp091-go. The dial and handshake
// are bounded by ctx's deadline, or by cfg.DialTimeout when ctx has none.
func NewDialer(cfg Config) Dialer {
	return func(ctx context.Context, url string) (Connection, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{
			Heartbeat: cfg.Heartbeat,
			Locale:    "en_US",
			Dial:      dialContext(ctx, cfg.DialTimeout),
		})
		if err != nil {
			return nil, err
		}
		return amqpConnection{conn}, nil
	}
}

// dialContext mirrors amqp.DefaultDial but honours ctx for the TCP dial and
// uses its deadline for the handshake.
func dialContext(ctx context.Context, timeout time.Duration) func(network, addr string) (net.Conn, error) {
	return func(network, addr string) (net.Conn, error) {
		deadline := time.Now().Add(timeout)
		if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
			deadline = d
		}

		d := net.Dialer{Deadline: deadline}
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}

		// Heartbeating hasn't started yet, don't stall forever on a dead server.
		// The deadline is cleared by amqp once the handshake completes.
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}
