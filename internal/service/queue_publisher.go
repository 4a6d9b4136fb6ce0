// Package queue_publisher publishes domain events and outbound
// notifications to RabbitMQ.  Errors are logged and returned to allow
// callers to ignore failures without interrupting the main request
// flow.
package queue_publisher

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/talebm/tutoring-enrollment/internal/model"
    q "github.com/talebm/tutoring-enrollment/internal/queue"
)

// Publisher publishes enrollment lifecycle events.  It dials per
// publish: event volume is low (a handful per confirmed batch) and a
// short-lived connection keeps the publisher robust against broker
// restarts without a reconnect loop.
type Publisher struct {
    URL string
}

// NewPublisher returns a Publisher for the given broker URL.
func NewPublisher(url string) *Publisher { return &Publisher{URL: url} }

// publishJSON marshals the payload and publishes it persistently to
// the named durable queue on the default exchange.
func publishJSON(ctx context.Context, url, queueName string, payload interface{}) error {
    conn, err := amqp.Dial(url)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(payload)
    if err != nil {
        log.Printf("rabbitmq: marshal payload failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }

    if err := ch.PublishWithContext(ctx, "", queueName, false, false, pub); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}

// BatchConfirmed publishes an EnrollmentConfirmedEvent.
func (p *Publisher) BatchConfirmed(ctx context.Context, studentID uint64, batchToken string, classIDs []uint64) error {
    return publishJSON(ctx, p.URL, q.EnrollmentConfirmedQueue, q.EnrollmentConfirmedEvent{
        StudentID:   studentID,
        BatchToken:  batchToken,
        ClassIDs:    classIDs,
        ConfirmedAt: time.Now().UTC().Format(time.RFC3339),
    })
}

// BatchLapsed publishes an EnrollmentLapsedEvent.
func (p *Publisher) BatchLapsed(ctx context.Context, studentID uint64, batchToken string, reservationIDs []uint64) error {
    return publishJSON(ctx, p.URL, q.EnrollmentLapsedQueue, q.EnrollmentLapsedEvent{
        StudentID:      studentID,
        BatchToken:     batchToken,
        ReservationIDs: reservationIDs,
        LapsedAt:       time.Now().UTC().Format(time.RFC3339),
    })
}

// QueueSender delivers notifications by enqueueing them for the
// notification worker.  "Send" here means the message reached the
// durable queue; the dedup record is therefore written once the
// message is safely enqueued, and the worker's delivery is
// at-least-once downstream of that.
type QueueSender struct {
    URL string
}

// NewQueueSender returns a QueueSender for the given broker URL.
func NewQueueSender(url string) *QueueSender { return &QueueSender{URL: url} }

// Send enqueues one notification for the worker.
func (s *QueueSender) Send(ctx context.Context, rcpt model.Recipient, templateKey string, params map[string]string) error {
    return publishJSON(ctx, s.URL, q.NotifyOutboundQueue, q.NotificationMessage{
        RecipientKey:   rcpt.Key,
        RecipientName:  rcpt.Name,
        RecipientEmail: rcpt.Email,
        TemplateKey:    templateKey,
        Params:         params,
        EnqueuedAt:     time.Now().UTC().Format(time.RFC3339),
    })
}
