package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"translation-server/internal/models"
)

// ProgressSubmitter — контракт сервиса переводов, нужный консьюмеру прогресса.
type ProgressSubmitter interface {
	SubmitProgress(ctx context.Context, storyID uuid.UUID, language string, sub models.ProgressSubmission) (*models.Translation, error)
}

// SyncTrigger — контракт синхронизатора, нужный консьюмеру обновлений мастера.
type SyncTrigger interface {
	ApplyMasterUpdate(ctx context.Context, storyID uuid.UUID, newHash string) ([]string, error)
}

// --- ProgressProcessor ---

// ProgressProcessor обрабатывает сообщения воркеров перевода из очереди translation_progress.
type ProgressProcessor struct {
	submitter ProgressSubmitter
}

func NewProgressProcessor(submitter ProgressSubmitter) *ProgressProcessor {
	return &ProgressProcessor{submitter: submitter}
}

// Process разбирает ProgressPayload и передает его в сервис переводов.
// Возвращаемая ошибка означает, что сообщение не было применено.
func (p *ProgressProcessor) Process(ctx context.Context, body []byte, storyID uuid.UUID) error {
	var payload ProgressPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("ошибка десериализации ProgressPayload: %w", err)
	}
	if payload.Language == "" {
		return fmt.Errorf("ProgressPayload для истории %s не содержит language", storyID)
	}

	sub := models.ProgressSubmission{
		Title:        payload.Title,
		Description:  payload.Description,
		QualityScore: payload.QualityScore,
		IsFinal:      payload.IsFinal,
		Chapters:     make([]models.ChapterSubmission, 0, len(payload.Chapters)),
	}
	for _, ch := range payload.Chapters {
		sub.Chapters = append(sub.Chapters, models.ChapterSubmission{
			ID:           ch.ID,
			Number:       ch.Number,
			Title:        ch.Title,
			WordCount:    ch.WordCount,
			Blocks:       ch.Blocks,
			AudioPayload: ch.AudioPayload,
		})
	}

	dbCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if _, err := p.submitter.SubmitProgress(dbCtx, storyID, payload.Language, sub); err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			// Валидация финала — штатный исход: статус failed уже записан,
			// воркер узнает о нем из события. Повторная доставка не нужна.
			log.Printf("[progress][TaskID: %s] Финальный прогресс для %s/%s отклонен валидацией: %v", payload.TaskID, storyID, payload.Language, vErr)
			return nil
		}
		return fmt.Errorf("ошибка применения прогресса для %s/%s: %w", storyID, payload.Language, err)
	}

	log.Printf("[progress][TaskID: %s] Прогресс для %s/%s применен (final=%t, chapters=%d)", payload.TaskID, storyID, payload.Language, payload.IsFinal, len(payload.Chapters))
	return nil
}

// --- MasterUpdateProcessor ---

// MasterUpdateProcessor обрабатывает сообщения из очереди master_content_updates.
type MasterUpdateProcessor struct {
	sync SyncTrigger
}

func NewMasterUpdateProcessor(sync SyncTrigger) *MasterUpdateProcessor {
	return &MasterUpdateProcessor{sync: sync}
}

func (p *MasterUpdateProcessor) Process(ctx context.Context, body []byte, storyID uuid.UUID) error {
	var payload MasterUpdatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return fmt.Errorf("ошибка десериализации MasterUpdatePayload: %w", err)
	}
	if payload.MasterContentHash == "" {
		return fmt.Errorf("MasterUpdatePayload для истории %s не содержит master_content_hash", storyID)
	}

	dbCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	marked, err := p.sync.ApplyMasterUpdate(dbCtx, storyID, payload.MasterContentHash)
	if err != nil {
		return fmt.Errorf("ошибка применения обновления мастера для %s: %w", storyID, err)
	}

	log.Printf("[master-update] История %s: новый мастер-хеш применен, помечено устаревшими переводов: %d", storyID, len(marked))
	return nil
}

// MessageProcessor — общий контракт обоих процессоров.
type MessageProcessor interface {
	Process(ctx context.Context, body []byte, storyID uuid.UUID) error
}

// --- Consumer ---

// Consumer слушает одну очередь RabbitMQ и передает сообщения процессору.
type Consumer struct {
	conn        *amqp.Connection
	processor   MessageProcessor
	queueName   string
	consumerTag string
	stopChannel chan struct{}
}

func NewConsumer(conn *amqp.Connection, processor MessageProcessor, queueName, consumerTag string) *Consumer {
	return &Consumer{
		conn:        conn,
		processor:   processor,
		queueName:   queueName,
		consumerTag: consumerTag,
		stopChannel: make(chan struct{}),
	}
}

// StartConsuming начинает прослушивание очереди. Блокирует до Stop или закрытия канала.
func (c *Consumer) StartConsuming() error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("consumer: не удалось открыть канал RabbitMQ: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("consumer: не удалось объявить очередь '%s': %w", c.queueName, err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("consumer: не удалось установить QoS: %w", err)
	}

	msgs, err := ch.Consume(
		q.Name,
		c.consumerTag,
		false, // auto-ack = false
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("consumer: не удалось зарегистрировать консьюмера: %w", err)
	}
	log.Printf("Consumer [%s]: запущен, ожидание сообщений из очереди '%s'...", c.consumerTag, q.Name)

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				log.Printf("Consumer [%s]: канал сообщений RabbitMQ закрыт", c.consumerTag)
				return nil
			}

			storyID, err := extractStoryID(d.Body)
			if err != nil {
				log.Printf("Consumer [%s]: сообщение (DeliveryTag: %d) отброшено: %v", c.consumerTag, d.DeliveryTag, err)
				_ = d.Nack(false, false) // requeue = false
				continue
			}

			if err := c.processor.Process(context.Background(), d.Body, storyID); err != nil {
				log.Printf("Consumer [%s]: ошибка обработки сообщения для истории %s: %v", c.consumerTag, storyID, err)
				// Сообщение не применено: возвращаем в очередь один раз,
				// повторно доставленные отправляем в дроп.
				_ = d.Nack(false, !d.Redelivered)
				continue
			}

			_ = d.Ack(false)

		case <-c.stopChannel:
			log.Printf("Consumer [%s]: получен сигнал остановки", c.consumerTag)
			return nil
		}
	}
}

// Stop останавливает консьюмер.
func (c *Consumer) Stop() {
	log.Printf("Consumer [%s]: остановка...", c.consumerTag)
	close(c.stopChannel)
}

// extractStoryID достает story_id из тела сообщения до полной десериализации.
func extractStoryID(body []byte) (uuid.UUID, error) {
	var preliminary struct {
		StoryID string `json:"story_id"`
	}
	if err := json.Unmarshal(body, &preliminary); err != nil {
		return uuid.Nil, fmt.Errorf("ошибка предварительного разбора сообщения: %w", err)
	}
	id, err := uuid.Parse(preliminary.StoryID)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("сообщение не содержит корректный story_id")
	}
	return id, nil
}
