package clients

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

const (
	FeeEventsExchange         = "fee_events"
	RoutingPaymentRecorded    = "fee.payment.recorded"
	RoutingPaymentLinkCreated = "fee.payment_link.generated"
)

// PaymentRecordedEvent is consumed by the messaging service to send the receipt to parents.
type PaymentRecordedEvent struct {
	BranchID         string          `json:"branch_id"`
	SessionID        string          `json:"session_id"`
	StudentID        string          `json:"student_id"`
	ReceiptNumber    string          `json:"receipt_number"`
	Mode             string          `json:"payment_mode"`
	Amount           decimal.Decimal `json:"amount"`
	AmountInWords    string          `json:"amount_in_words"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	PaidAt           time.Time       `json:"paid_at"`
}

// PaymentLinkEvent asks the messaging service to deliver a gateway link.
type PaymentLinkEvent struct {
	BranchID  string          `json:"branch_id"`
	StudentID string          `json:"student_id"`
	LinkID    string          `json:"link_id"`
	URL       string          `json:"url"`
	Amount    decimal.Decimal `json:"amount"`
	Phone     string          `json:"phone,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	PublishPaymentRecorded(ctx context.Context, event PaymentRecordedEvent) error
	PublishPaymentLink(ctx context.Context, event PaymentLinkEvent) error
	Close()
}

// EventProducer publishes JSON events to a durable topic exchange.
type EventProducer struct {
	conn *amqp091.Connection

	mu      sync.Mutex
	channel *amqp091.Channel
}

// EventProducerFallback is used when RabbitMQ is not configured or unreachable at startup.
type EventProducerFallback struct{}

func (p *EventProducerFallback) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	log.Printf("[MQ] fallback: publish skipped exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

func (p *EventProducerFallback) PublishPaymentRecorded(ctx context.Context, event PaymentRecordedEvent) error {
	return p.Publish(ctx, FeeEventsExchange, RoutingPaymentRecorded, event)
}

func (p *EventProducerFallback) PublishPaymentLink(ctx context.Context, event PaymentLinkEvent) error {
	return p.Publish(ctx, FeeEventsExchange, RoutingPaymentLinkCreated, event)
}

func (p *EventProducerFallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

func NewEventProducer(amqpURL string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{conn: conn, channel: ch}, nil
}

// NewPublisher connects to RabbitMQ, falling back to a logging no-op publisher when amqpURL is
// empty or the broker cannot be reached.
func NewPublisher(amqpURL string) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		log.Println("[MQ] RABBITMQ_URL not set, events will be dropped")
		return &EventProducerFallback{}
	}
	p, err := NewEventProducer(amqpURL)
	if err != nil {
		log.Printf("[MQ] connect failed, events will be dropped: %v", err)
		return &EventProducerFallback{}
	}
	return p
}

func (p *EventProducer) publishOnce(ctx context.Context, exchange, routingKey string, body []byte) error {
	if err := p.channel.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return err
	}
	return p.channel.PublishWithContext(ctx, exchange, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

// Publish retries once on a fresh channel when the current one has been closed by the broker.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.publishOnce(ctx, exchange, routingKey, payload)
	if err == nil {
		return nil
	}
	log.Printf("[MQ] publish failed, reopening channel exchange=%s routing_key=%s err=%v", exchange, routingKey, err)

	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return chErr
	}
	p.channel = ch
	return p.publishOnce(ctx, exchange, routingKey, payload)
}

func (p *EventProducer) PublishPaymentRecorded(ctx context.Context, event PaymentRecordedEvent) error {
	return p.Publish(ctx, FeeEventsExchange, RoutingPaymentRecorded, event)
}

func (p *EventProducer) PublishPaymentLink(ctx context.Context, event PaymentLinkEvent) error {
	return p.Publish(ctx, FeeEventsExchange, RoutingPaymentLinkCreated, event)
}

func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
