// Package publisher announces cache refreshes on a message broker.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/bryan-buckman/binsearch/internal/config"
	"github.com/bryan-buckman/binsearch/internal/model"
)

// channel is the part of *amqp.Channel used for publishing.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    channel
	exchange   string
	routingKey string
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewRabbitMQ(cfg config.RabbitMQConfig, log logrus.FieldLogger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	log.WithFields(logrus.Fields{
		"exchange":    cfg.Exchange,
		"queue":       cfg.QueueName,
		"routing_key": cfg.RoutingKey,
	}).Info("Connected to RabbitMQ")

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		log:        log,
		now:        time.Now,
	}, nil
}

// RefreshMessage is the JSON body published after each stored refresh.
type RefreshMessage struct {
	Provider    string            `json:"provider"`
	Items       []model.CacheItem `json:"items"`
	RefreshedAt time.Time         `json:"refreshed_at"`
}

// NotifyRefresh publishes the freshly stored items as one persistent message.
func (r *RabbitMQ) NotifyRefresh(ctx context.Context, provider string, items []model.CacheItem) error {
	msg := RefreshMessage{
		Provider:    provider,
		Items:       items,
		RefreshedAt: r.now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    msg.RefreshedAt,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"provider": provider,
		"items":    len(items),
	}).Debug("Published cache refresh")
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
