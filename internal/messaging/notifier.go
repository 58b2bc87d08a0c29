// Package messaging публикует события о готовых видео в RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"finishflow/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const appID = "finishflow"

// RabbitMQNotifier отправляет model.VideoReadyEvent в очередь.
// Канал открывается и закрывается снаружи.
type RabbitMQNotifier struct {
	mu        sync.Mutex
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQNotifier объявляет durable очередь и возвращает notifier.
func NewRabbitMQNotifier(ch *amqp.Channel, queueName string, logger *zap.Logger) (*RabbitMQNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	_, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		amqp.Table{"x-queue-mode": "lazy"},
	)
	if err != nil {
		return nil, fmt.Errorf("declare queue %q: %w", queueName, err)
	}
	logger.Info("Video events queue declared", zap.String("queue", queueName))
	return &RabbitMQNotifier{channel: ch, queueName: queueName, logger: logger}, nil
}

// NotifyVideoReady публикует событие как persistent JSON сообщение.
func (n *RabbitMQNotifier) NotifyVideoReady(ctx context.Context, event model.VideoReadyEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal video ready event %s: %w", event.RunID, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	err = n.channel.PublishWithContext(ctx,
		"",
		n.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        appID,
			MessageId:    event.RunID + "-ready",
		},
	)
	if err != nil {
		n.logger.Error("Failed to publish video ready event", zap.String("run_id", event.RunID), zap.Error(err))
		return fmt.Errorf("publish video ready event %s: %w", event.RunID, err)
	}
	n.logger.Info("Video ready event published", zap.String("run_id", event.RunID), zap.String("queue", n.queueName))
	return nil
}
