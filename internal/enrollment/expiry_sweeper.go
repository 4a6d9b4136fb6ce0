package enrollment

import (
    "context"
    "fmt"
    "log"
    "strconv"
    "time"

    "github.com/talebm/tutoring-enrollment/internal/model"
)

// ExpirySweeper lapses reservations whose hold deadline has passed.
// It is a stateless, idempotent batch job: overlapping invocations are
// safe because every transition is a compare-and-set on the expected
// pending status and every notification goes through the dedup ledger.
type ExpirySweeper struct {
    Reservations ReservationStore
    Recipients   RecipientStore
    Notifier     *Notifier
    Events       EventPublisher
}

// SweepResult summarizes one expiry sweep run.
type SweepResult struct {
    Expired           int `json:"expired"`
    NotificationsSent int `json:"notifications_sent"`
    Anomalies         int `json:"anomalies"`
}

// expiredGroup is one batch of overdue rows that expires as a unit.
type expiredGroup struct {
    studentID uint64
    refToken  string // batch token, or a synthetic key for approval rows
    ids       []uint64
}

// Run performs one sweep at the given instant.  Etransfer holds are
// grouped by their shared batch token; approval rows carry no token
// and are grouped per student under a synthetic key derived from the
// lowest reservation id, which keeps the dedup reference stable across
// retried sweeps.  Per-group failures are logged and skipped so one
// bad batch cannot abort the rest of the run.
func (s *ExpirySweeper) Run(ctx context.Context, now time.Time) (SweepResult, error) {
    var res SweepResult

    etransfer, err := s.Reservations.ExpiredPending(ctx, model.StatusPendingEtransfer, now)
    if err != nil {
        return res, fmt.Errorf("query expired etransfer holds: %w", err)
    }
    for _, g := range groupByToken(etransfer, &res) {
        s.lapseGroup(ctx, g, model.StatusPendingEtransfer, model.StatusEtransferLapsed, model.NotifyEtransferLapsed, &res)
    }

    approvals, err := s.Reservations.ExpiredPending(ctx, model.StatusPendingApproval, now)
    if err != nil {
        return res, fmt.Errorf("query expired approvals: %w", err)
    }
    for _, g := range groupByStudent(approvals) {
        s.lapseGroup(ctx, g, model.StatusPendingApproval, model.StatusDropped, model.NotifyApprovalDropped, &res)
    }
    return res, nil
}

// groupByToken collects etransfer rows under their shared batch token.
// A pending etransfer row without a token is a consistency violation:
// it is counted as an anomaly and left for manual review.
func groupByToken(rows []model.Reservation, res *SweepResult) []expiredGroup {
    byToken := make(map[string]*expiredGroup)
    order := make([]string, 0)
    for _, r := range rows {
        if r.BatchToken == nil || *r.BatchToken == "" {
            log.Printf("sweeper: pending etransfer reservation %d has no batch token, skipping", r.ID)
            res.Anomalies++
            continue
        }
        g, ok := byToken[*r.BatchToken]
        if !ok {
            g = &expiredGroup{studentID: r.StudentID, refToken: *r.BatchToken}
            byToken[*r.BatchToken] = g
            order = append(order, *r.BatchToken)
        }
        if g.studentID != r.StudentID {
            log.Printf("sweeper: batch %s spans students %d and %d, skipping", *r.BatchToken, g.studentID, r.StudentID)
            res.Anomalies++
            continue
        }
        g.ids = append(g.ids, r.ID)
    }
    groups := make([]expiredGroup, 0, len(order))
    for _, tok := range order {
        groups = append(groups, *byToken[tok])
    }
    return groups
}

// groupByStudent collects approval rows, which carry no batch token,
// into one group per student.  The synthetic reference key uses the
// lowest reservation id so a retried sweep dedups against the same
// tuple.
func groupByStudent(rows []model.Reservation) []expiredGroup {
    byStudent := make(map[uint64]*expiredGroup)
    order := make([]uint64, 0)
    for _, r := range rows {
        g, ok := byStudent[r.StudentID]
        if !ok {
            g = &expiredGroup{studentID: r.StudentID}
            byStudent[r.StudentID] = g
            order = append(order, r.StudentID)
        }
        g.ids = append(g.ids, r.ID)
    }
    groups := make([]expiredGroup, 0, len(order))
    for _, sid := range order {
        g := byStudent[sid]
        minID := g.ids[0]
        for _, id := range g.ids {
            if id < minID {
                minID = id
            }
        }
        g.refToken = fmt.Sprintf("approval_%d", minID)
        groups = append(groups, *g)
    }
    return groups
}

// lapseGroup compare-and-sets one group into its terminal state and
// notifies each distinct recipient once per group, not once per class
// row.  A group where nothing transitioned was confirmed by an admin
// between the query and the update; that is the race the CAS exists
// for, and it is silently skipped.
func (s *ExpirySweeper) lapseGroup(ctx context.Context, g expiredGroup, from, to, notifType string, res *SweepResult) {
    moved, err := s.Reservations.LapseReservations(ctx, g.ids, from, to)
    if err != nil {
        log.Printf("sweeper: lapse group %s for student %d failed: %v", g.refToken, g.studentID, err)
        res.Anomalies++
        return
    }
    if moved == 0 {
        return
    }
    res.Expired += int(moved)

    if s.Events != nil && to == model.StatusEtransferLapsed {
        if err := s.Events.BatchLapsed(ctx, g.studentID, g.refToken, g.ids); err != nil {
            log.Printf("sweeper: publish lapsed event failed: %v", err)
        }
    }

    rcpts, err := s.Recipients.StudentRecipients(ctx, g.studentID)
    if err != nil {
        log.Printf("sweeper: resolve recipients for student %d failed: %v", g.studentID, err)
        res.Anomalies++
        return
    }
    ref := fmt.Sprintf("%d_%s", g.studentID, g.refToken)
    res.NotificationsSent += s.Notifier.NotifyAll(ctx, rcpts, notifType, ref, notifType, map[string]string{
        "class_count": strconv.FormatInt(moved, 10),
    })
}
