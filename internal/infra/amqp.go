// README: RabbitMQ connection and channel setup.
package infra

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

type AMQP struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

func NewAMQP(url string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &AMQP{Conn: conn, Channel: ch}, nil
}

func (a *AMQP) Close() {
	if a == nil {
		return
	}
	if a.Channel != nil {
		_ = a.Channel.Close()
	}
	if a.Conn != nil {
		_ = a.Conn.Close()
	}
}
