package bus

import (
	"fmt"

	"github.com/streadway/amqp"
)

// MockAMQPConnection is a mock AMQPConnection for tests.
type MockAMQPConnection struct {
	MockChannel   AMQPChannel
	ChannelErr    error
	CloseErr      error
	ChannelCalled bool
	CloseCalled   bool
}

func (m *MockAMQPConnection) Channel() (AMQPChannel, error) {
	m.ChannelCalled = true
	if m.ChannelErr != nil {
		return nil, m.ChannelErr
	}
	return m.MockChannel, nil
}

func (m *MockAMQPConnection) Close() error {
	m.CloseCalled = true
	return m.CloseErr
}

// MockAMQPChannel is a mock AMQPChannel for tests.
type MockAMQPChannel struct {
	PublishedMessages []amqp.Publishing
	PublishedKeys     []string
	Deliveries        chan amqp.Delivery

	QueueDeclareErr   error
	ExchangeDeclareErr error
	QueueBindErr      error
	PublishErr        error
	ConsumeErr        error
	PurgeErr          error
	CloseErr          error

	QueueDeclareCalled bool
	PublishCalled      bool
	ConsumeCalled      bool
	CloseCalled        bool
	PurgedQueue        string

	LastQueueName string
	LastExchange  string
	LastKey       string
}

func (m *MockAMQPChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	m.QueueDeclareCalled = true
	m.LastQueueName = name
	if m.QueueDeclareErr != nil {
		return amqp.Queue{}, m.QueueDeclareErr
	}
	return amqp.Queue{Name: name}, nil
}

func (m *MockAMQPChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.ExchangeDeclareErr
}

func (m *MockAMQPChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return m.QueueBindErr
}

func (m *MockAMQPChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	m.PublishCalled = true
	m.LastExchange = exchange
	m.LastKey = key
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.PublishedMessages = append(m.PublishedMessages, msg)
	m.PublishedKeys = append(m.PublishedKeys, key)
	return nil
}

func (m *MockAMQPChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	m.ConsumeCalled = true
	if m.ConsumeErr != nil {
		return nil, m.ConsumeErr
	}
	if m.Deliveries == nil {
		m.Deliveries = make(chan amqp.Delivery, 16)
	}
	return m.Deliveries, nil
}

func (m *MockAMQPChannel) Qos(prefetchCount, prefetchSize int, global bool) error { return nil }

func (m *MockAMQPChannel) QueueInspect(name string) (amqp.Queue, error) {
	return amqp.Queue{Name: name, Messages: len(m.Deliveries)}, nil
}

func (m *MockAMQPChannel) QueuePurge(name string, noWait bool) (int, error) {
	m.PurgedQueue = name
	if m.PurgeErr != nil {
		return 0, m.PurgeErr
	}
	n := len(m.Deliveries)
	for i := 0; i < n; i++ {
		<-m.Deliveries
	}
	return n, nil
}

func (m *MockAMQPChannel) Close() error {
	m.CloseCalled = true
	return m.CloseErr
}

// MockAMQPDialer is a mock AMQPDialer for tests.
type MockAMQPDialer struct {
	MockConnection AMQPConnection
	DialErr        error
	DialCalled     bool
	LastURL        string
}

func (m *MockAMQPDialer) Dial(url string) (AMQPConnection, error) {
	m.DialCalled = true
	m.LastURL = url
	if m.DialErr != nil {
		return nil, m.DialErr
	}
	return m.MockConnection, nil
}

// SetupMockDialerForTest builds a fully-wired mock dialer/channel/connection triple.
func SetupMockDialerForTest() (*MockAMQPDialer, *MockAMQPChannel, *MockAMQPConnection) {
	mockChannel := &MockAMQPChannel{Deliveries: make(chan amqp.Delivery, 16)}
	mockConn := &MockAMQPConnection{MockChannel: mockChannel}
	mockDialer := &MockAMQPDialer{MockConnection: mockConn}
	return mockDialer, mockChannel, mockConn
}

// SetupMockDialerWithChannelError builds a dialer whose Channel() call fails.
func SetupMockDialerWithChannelError() *MockAMQPDialer {
	mockConn := &MockAMQPConnection{ChannelErr: fmt.Errorf("failed to open channel")}
	return &MockAMQPDialer{MockConnection: mockConn}
}
