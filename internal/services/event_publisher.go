package services

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// DocumentEvent представляет событие жизненного цикла документа,
// публикуемое для внешней бухгалтерии и дашборда
type DocumentEvent struct {
	Type       string    `json:"type"`        // order_created, order_approved, settlement_paid, ...
	DocumentNo string    `json:"document_no"` // PO-2026-0001 / ST-2026-0001
	Status     string    `json:"status"`
	Amount     string    `json:"amount"` // Итоговая сумма документа (строка, чтобы не терять точность)
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher публикует события документов в Kafka.
// Публикация best-effort: ошибка брокера логируется, но не откатывает
// уже закоммиченную транзакцию документа.
type EventPublisher struct {
	writer *kafka.Writer
}

// NewEventPublisher создает publisher с поддержкой SASL/PLAIN и TLS (для Aiven)
func NewEventPublisher(brokers, topic, username, password, caCert string) *EventPublisher {
	if brokers == "" || topic == "" {
		return nil
	}

	transport := &kafka.Transport{DialTimeout: 10 * time.Second}

	// Если указаны username и password, используем SASL/PLAIN
	if username != "" && password != "" {
		transport.SASL = plain.Mechanism{
			Username: username,
			Password: password,
		}
		log.Printf("🔐 Kafka: SASL/PLAIN аутентификация включена (username: %s)", username)
	}

	// Настраиваем TLS: при SASL он обязателен (Aiven), иначе — только если задан CA
	if username != "" && password != "" || caCert != "" {
		tlsConfig := &tls.Config{}
		if caCert != "" {
			caCertPool := x509.NewCertPool()
			if ok := caCertPool.AppendCertsFromPEM([]byte(caCert)); ok {
				tlsConfig.RootCAs = caCertPool
				log.Printf("🔒 Kafka: TLS с CA сертификатом включен")
			} else {
				log.Printf("⚠️ Kafka: не удалось распарсить CA сертификат, используем системные сертификаты")
			}
		}
		transport.TLS = tlsConfig
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		Transport:    transport,
		WriteTimeout: 10 * time.Second,
	}

	log.Printf("📡 Kafka publisher инициализирован: brokers=%s topic=%s", brokers, topic)
	return &EventPublisher{writer: writer}
}

// Publish отправляет событие в Kafka. Nil-safe: при отключенной Kafka
// publisher равен nil и вызов ничего не делает.
func (p *EventPublisher) Publish(event DocumentEvent) {
	if p == nil || p.writer == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("⚠️ Kafka: ошибка маршалинга события %s: %v", event.Type, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.DocumentNo),
		Value: data,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("⚠️ Kafka: не удалось опубликовать событие %s (%s): %v", event.Type, event.DocumentNo, err)
		return
	}
}

// Close закрывает writer
func (p *EventPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
