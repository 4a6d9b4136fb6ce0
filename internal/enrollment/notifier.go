package enrollment

import (
    "context"
    "log"

    "github.com/talebm/tutoring-enrollment/internal/model"
)

// Notifier wraps a delivery sender with the append-only dedup ledger
// to guarantee at-most-once delivery per (recipient, type, reference)
// tuple across any number of concurrent or retried sweeps.
type Notifier struct {
    Ledger DedupStore
    Sender NotificationSender
}

// NewNotifier constructs a Notifier.  Both dependencies are required.
func NewNotifier(ledger DedupStore, sender NotificationSender) *Notifier {
    if ledger == nil || sender == nil {
        panic("nil dependency passed to NewNotifier")
    }
    return &Notifier{Ledger: ledger, Sender: sender}
}

// CheckAndSend delivers the message unless the tuple was already
// recorded.  The record is written only after delivery succeeds, so a
// failed send is retried by the next sweep; "sent" means successfully
// delivered, not attempted.  Two invocations racing on the same tuple
// may both attempt delivery, but the ledger's unique constraint lets
// only one record stand; RecordSent treats the duplicate-key case as
// success, which keeps the race harmless for bookkeeping.
//
// It returns true when this call delivered the message.
func (n *Notifier) CheckAndSend(ctx context.Context, rcpt model.Recipient, notifType, referenceID, templateKey string, params map[string]string) (bool, error) {
    sent, err := n.Ledger.AlreadySent(ctx, rcpt.Key, notifType, referenceID)
    if err != nil {
        return false, err
    }
    if sent {
        return false, nil
    }
    if err := n.Sender.Send(ctx, rcpt, templateKey, params); err != nil {
        return false, err
    }
    if err := n.Ledger.RecordSent(ctx, rcpt.Key, notifType, referenceID); err != nil {
        // Delivery happened but the record failed; the next sweep may
        // re-deliver.  Surface it loudly, this is the one spot where
        // at-most-once can degrade to at-least-once.
        log.Printf("notifier: record failed for %s/%s/%s: %v", rcpt.Key, notifType, referenceID, err)
        return true, err
    }
    return true, nil
}

// NotifyAll runs CheckAndSend for every recipient, isolating failures
// per recipient: one undeliverable address must not block the rest.
// It returns how many messages were actually delivered by this call.
func (n *Notifier) NotifyAll(ctx context.Context, rcpts []model.Recipient, notifType, referenceID, templateKey string, params map[string]string) int {
    delivered := 0
    for _, r := range rcpts {
        sent, err := n.CheckAndSend(ctx, r, notifType, referenceID, templateKey, params)
        if err != nil {
            log.Printf("notifier: %s to %s (ref %s) failed: %v", notifType, r.Key, referenceID, err)
            continue
        }
        if sent {
            delivered++
        }
    }
    return delivered
}
