package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// subscribeBuffer is how many messages a subscription holds before NATS
// starts dropping them as a slow consumer.
const subscribeBuffer = 64

func connect(url, name string, opts ...nats.Option) (*nats.Conn, error) {
	nc, err := nats.Connect(url, append([]nats.Option{nats.Name(name)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return nc, nil
}

// drainTimeout bounds how long Close waits for buffered events to flush.
const drainTimeout = 5 * time.Second

// NATSPublisher publishes JSON-encoded events on NATS subjects named by topic.
type NATSPublisher struct {
	conn   *nats.Conn
	closed chan struct{}
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	closed := make(chan struct{})
	nc, err := connect(url, "trackd-server",
		nats.DrainTimeout(drainTimeout),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{conn: nc, closed: closed}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	if err := p.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Close drains the connection so events published just before shutdown
// still reach the server. It returns once the connection is closed; a later
// Publish fails.
func (p *NATSPublisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	select {
	case <-p.closed:
		return nil
	case <-time.After(drainTimeout + time.Second):
		p.conn.Close()
		return fmt.Errorf("draining NATS connection: %w", nats.ErrDrainTimeout)
	}
}

// NATSSubscriber is the client side used by td watch. It reconnects
// forever; opts can add disconnect and reconnect handlers.
type NATSSubscriber struct {
	conn *nats.Conn
}

func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	nc, err := connect(url, "td-watch", append([]nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}, opts...)...)
	if err != nil {
		return nil, err
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe delivers payloads for topic until the returned cancel is called.
// The subscription is registered with the server before Subscribe returns.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	msgs := make(chan *nats.Msg, subscribeBuffer)
	sub, err := s.conn.ChanSubscribe(topic, msgs)
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, nil, fmt.Errorf("flushing subscription to %s: %w", topic, err)
	}

	out := make(chan []byte)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case m := <-msgs:
				select {
				case out <- m.Data:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			close(done)
		})
	}
	return out, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
