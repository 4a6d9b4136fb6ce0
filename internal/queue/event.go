// Package queue defines message payloads exchanged over the message broker.
package queue

// EnrollmentConfirmedEvent is published when a reservation batch is
// confirmed (e-transfer verified by staff or card payment finalized).
// It carries enough information for downstream consumers to log or
// trigger analytics without querying the primary database.
type EnrollmentConfirmedEvent struct {
    StudentID   uint64   `json:"student_id"`
    BatchToken  string   `json:"batch_token"`
    ClassIDs    []uint64 `json:"class_ids"`
    ConfirmedAt string   `json:"confirmed_at"`
}

// EnrollmentLapsedEvent is published when the expiry sweeper lapses an
// e-transfer batch whose hold deadline passed without payment.
type EnrollmentLapsedEvent struct {
    StudentID      uint64   `json:"student_id"`
    BatchToken     string   `json:"batch_token"`
    ReservationIDs []uint64 `json:"reservation_ids"`
    LapsedAt       string   `json:"lapsed_at"`
}

// NotificationMessage is the outbound delivery payload consumed by the
// notification worker.  The dedup decision has already been made by
// the time a message reaches the queue; the worker only delivers.
type NotificationMessage struct {
    RecipientKey   string            `json:"recipient_key"`
    RecipientName  string            `json:"recipient_name"`
    RecipientEmail string            `json:"recipient_email"`
    TemplateKey    string            `json:"template_key"`
    Params         map[string]string `json:"params,omitempty"`
    EnqueuedAt     string            `json:"enqueued_at"`
}
