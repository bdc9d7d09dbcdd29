package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// TranslationEventPublisher defines the interface for publishing translation
// lifecycle events (completed, failed, stale) to the client updates queue.
type TranslationEventPublisher interface {
	PublishTranslationEvent(ctx context.Context, event TranslationEvent) error
}

// rabbitMQPublisher implements TranslationEventPublisher for RabbitMQ.
type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
}

// NewRabbitMQEventPublisher creates a new publisher for the client updates queue.
// Паблишер объявляет очередь сам, чтобы не зависеть от порядка запуска сервисов;
// параметры должны совпадать с консьюмером на стороне websocket-слоя.
func NewRabbitMQEventPublisher(conn *amqp.Connection, queueName string) (TranslationEventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("event publisher: не удалось открыть канал: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		log.Printf("EventPublisher ERROR: Не удалось объявить очередь '%s': %v", queueName, err)
		ch.Close()
		return nil, fmt.Errorf("event publisher: не удалось объявить очередь '%s': %w", queueName, err)
	}
	return &rabbitMQPublisher{channel: ch, queueName: queueName}, nil
}

// PublishTranslationEvent publishes a translation lifecycle event.
func (p *rabbitMQPublisher) PublishTranslationEvent(ctx context.Context, event TranslationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("[StoryID: %s][%s] Ошибка сериализации TranslationEvent: %v", event.StoryID, event.Language, err)
		return fmt.Errorf("ошибка сериализации события перевода для %s/%s: %w", event.StoryID, event.Language, err)
	}
	if err := p.publishMessage(ctx, body); err != nil {
		log.Printf("[StoryID: %s][%s] Ошибка публикации TranslationEvent: %v", event.StoryID, event.Language, err)
		return fmt.Errorf("ошибка публикации события перевода для %s/%s: %w", event.StoryID, event.Language, err)
	}
	return nil
}

// publishMessage is a helper method for publishing a message.
func (p *rabbitMQPublisher) publishMessage(ctx context.Context, body []byte) error {
	if p.channel == nil {
		log.Println("Ошибка публикации: канал RabbitMQ не инициализирован (nil)")
		return errors.New("канал RabbitMQ не инициализирован")
	}
	// Устанавливаем таймаут на публикацию
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var err error
	// Попытка публикации с retry до 3 раз
	for attempt := 1; attempt <= 3; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (используем default)
			p.queueName, // routing key (имя очереди)
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
				Timestamp:    time.Now(),
				AppId:        "translation-server", // Идентификатор отправителя
			},
		)
		if err == nil {
			break
		}
		log.Printf("Ошибка публикации (attempt %d) в очередь '%s': %v", attempt, p.queueName, err)
		time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
	}
	if err != nil {
		return fmt.Errorf("не удалось опубликовать сообщение в '%s' после ретраев: %w", p.queueName, err)
	}
	return nil
}
