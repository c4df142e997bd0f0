package events

import (
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

var ErrPoolExhausted = errors.New("no channels available in pool")

// ChannelPool hands out pre-opened channels on one connection. Every channel
// has the durable queue declared.
type ChannelPool struct {
	conn      *amqp.Connection
	channels  chan *amqp.Channel
	mu        sync.Mutex
	closed    bool
	queueName string
	logger    *zap.SugaredLogger
}

func NewChannelPool(url, queueName string, size int, logger *zap.SugaredLogger) (*ChannelPool, error) {
	if size <= 0 {
		size = 1
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	pool := &ChannelPool{
		conn:      conn,
		channels:  make(chan *amqp.Channel, size),
		queueName: queueName,
		logger:    logger,
	}
	for i := 0; i < size; i++ {
		ch, err := pool.createChannel()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create channel %d: %w", i, err)
		}
		pool.channels <- ch
	}

	logger.Infow("rabbitmq channel pool ready", "queue", queueName, "size", size)
	return pool, nil
}

func (p *ChannelPool) createChannel() (*amqp.Channel, error) {
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}
	if _, err := ch.QueueDeclare(p.queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}
	return ch, nil
}

// Get takes a channel without blocking, replacing one the broker closed.
func (p *ChannelPool) Get() (*amqp.Channel, error) {
	select {
	case ch, ok := <-p.channels:
		if !ok {
			return nil, ErrPoolExhausted
		}
		if ch.IsClosed() {
			return p.createChannel()
		}
		return ch, nil
	default:
		return nil, ErrPoolExhausted
	}
}

func (p *ChannelPool) Put(ch *amqp.Channel) {
	if ch == nil || ch.IsClosed() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		ch.Close()
		return
	}
	select {
	case p.channels <- ch:
	default:
		ch.Close()
	}
}

func (p *ChannelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true

	close(p.channels)
	for ch := range p.channels {
		ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.logger.Info("rabbitmq channel pool closed")
}
