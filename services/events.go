package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/overstreetbilly/snapgram/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	PostCreated = "created"
	PostUpdated = "updated"
	PostDeleted = "deleted"
	PostLiked   = "liked"

	postRoutingPrefix = "post."
)

// PostEvent - событие об изменении поста для живой ленты
type PostEvent struct {
	Type       string    `json:"type"`
	PostID     string    `json:"post_id"`
	CreatorID  string    `json:"creator_id,omitempty"`
	Caption    string    `json:"caption,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	Likes      int       `json:"likes"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newPostEvent(eventType string, post *models.Post) PostEvent {
	return PostEvent{
		Type:       eventType,
		PostID:     post.ID,
		CreatorID:  post.CreatorID,
		Caption:    post.Caption,
		ImageURL:   post.ImageURL,
		Likes:      len(post.Likes),
		OccurredAt: time.Now().UTC(),
	}
}

// EventPublisher публикует события постов
type EventPublisher interface {
	Publish(ctx context.Context, event PostEvent) error
}

// DirectPublisher пушит события в websocket напрямую, когда RabbitMQ не настроен
type DirectPublisher struct {
	hub *WSConnManager
}

func NewDirectPublisher(hub *WSConnManager) *DirectPublisher {
	return &DirectPublisher{hub: hub}
}

func (p *DirectPublisher) Publish(ctx context.Context, event PostEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	p.hub.Broadcast(body)
	return nil
}

// RabbitPublisher публикует события в topic exchange с ключом post.<type>
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewRabbitPublisher подключается к RabbitMQ и объявляет exchange
func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	// Создаем exchange типа topic
	if err = channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,   // args
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	log.Printf("RabbitMQ initialized, exchange %s", exchange)
	return &RabbitPublisher{conn: conn, channel: channel, exchange: exchange}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, event PostEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.channel.PublishWithContext(ctx,
		p.exchange,
		postRoutingPrefix+event.Type,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Body:         body,
		},
	)
}

// StartConsumer слушает события постов и рассылает их websocket клиентам
func (p *RabbitPublisher) StartConsumer(ctx context.Context, queueName string, hub *WSConnManager) error {
	q, err := p.channel.QueueDeclare(
		queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}
	if err = p.channel.QueueBind(q.Name, postRoutingPrefix+"*", p.exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}
	msgs, err := p.channel.Consume(
		q.Name,
		"",
		true,  // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Printf("WARN: post event consumer channel closed")
					return
				}
				var event PostEvent
				if err := json.Unmarshal(msg.Body, &event); err != nil {
					log.Printf("ERROR: failed to unmarshal post event: %v", err)
					continue
				}
				hub.Broadcast(msg.Body)
			}
		}
	}()
	return nil
}

func (p *RabbitPublisher) Close() error {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
