package enrollment_test

import (
    "context"
    "errors"
    "fmt"
    "sort"
    "sync"
    "time"

    "github.com/talebm/tutoring-enrollment/internal/enrollment"
    "github.com/talebm/tutoring-enrollment/internal/model"
)

// memBackend is an in-memory stand-in for the MySQL repositories.  A
// single mutex plays the role of the database's transaction isolation:
// every store method takes it for its whole body, which mirrors the
// "capacity check and insert in one transaction" contract the real
// repository provides with row locks.
type memBackend struct {
    mu sync.Mutex

    term         model.Term
    classes      map[uint64]model.Class
    reservations map[uint64]*model.Reservation
    nextID       uint64

    students  map[uint64]model.Recipient   // studentID -> recipient
    guardians map[uint64][]model.Recipient // studentID -> linked guardians

    referrals map[uint64]*model.Referral // invitee studentID -> referral
    sessions  map[string]*model.PaymentSession

    sentRecords map[string]struct{} // dedup tuples "recipient|type|ref"

    createErr error // next CreateBatch fails with this once
}

func newMemBackend() *memBackend {
    return &memBackend{
        term: model.Term{
            ID:       1,
            Name:     "Winter 2025",
            StartsOn: time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC),
            EndsOn:   time.Date(2025, time.March, 24, 0, 0, 0, 0, time.UTC),
            IsActive: true,
        },
        classes:      make(map[uint64]model.Class),
        reservations: make(map[uint64]*model.Reservation),
        students:     make(map[uint64]model.Recipient),
        guardians:    make(map[uint64][]model.Recipient),
        referrals:    make(map[uint64]*model.Referral),
        sessions:     make(map[string]*model.PaymentSession),
        sentRecords:  make(map[string]struct{}),
    }
}

func (b *memBackend) addClass(id uint64, title string, maxSeats uint32) {
    b.classes[id] = model.Class{
        ID: id, TermID: b.term.ID, Title: title, MaxSeats: maxSeats,
        Weekday: 3, StartTime: "15:00", EndTime: "16:00",
        Timezone: "America/Vancouver", FeeCents: 25000, IsActive: true,
    }
}

func (b *memBackend) addStudent(id uint64, name string, guardianCount int) {
    b.students[id] = model.Recipient{Key: fmt.Sprintf("student:%d", id), Name: name, Email: fmt.Sprintf("s%d@example.com", id)}
    for i := 0; i < guardianCount; i++ {
        b.guardians[id] = append(b.guardians[id], model.Recipient{
            Key:   fmt.Sprintf("guardian:%d%d", id, i),
            Name:  fmt.Sprintf("guardian %d of %d", i, id),
            Email: fmt.Sprintf("g%d-%d@example.com", id, i),
        })
    }
}

// ----- ReservationStore -----

func (b *memBackend) occupiedLocked(classID uint64) int {
    n := 0
    for _, r := range b.reservations {
        if r.ClassID == classID && r.Occupying() {
            n++
        }
    }
    return n
}

func (b *memBackend) checkLocked(studentID uint64, classIDs []uint64) error {
    for _, cid := range classIDs {
        c, ok := b.classes[cid]
        if !ok {
            return enrollment.ErrInvalidTerm
        }
        for _, r := range b.reservations {
            if r.StudentID == studentID && r.ClassID == cid && r.Occupying() {
                return enrollment.ErrDuplicateReservation
            }
        }
        if b.occupiedLocked(cid) >= int(c.MaxSeats) {
            return &enrollment.CapacityError{ClassID: c.ID, Title: c.Title}
        }
    }
    return nil
}

func (b *memBackend) CreateBatch(_ context.Context, req enrollment.CreateBatchRequest) ([]model.Reservation, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    if err := b.createErr; err != nil {
        b.createErr = nil
        return nil, err
    }
    if err := b.checkLocked(req.StudentID, req.ClassIDs); err != nil {
        return nil, err
    }
    now := time.Now().UTC()
    out := make([]model.Reservation, 0, len(req.ClassIDs))
    for _, cid := range req.ClassIDs {
        b.nextID++
        r := &model.Reservation{
            ID: b.nextID, StudentID: req.StudentID, ClassID: cid,
            Status: req.Status, PaymentMethod: req.PaymentMethod,
            BatchToken: req.BatchToken, HoldExpiresAt: req.HoldExpiresAt,
            CreatedAt: now, UpdatedAt: now,
        }
        b.reservations[r.ID] = r
        out = append(out, *r)
    }
    return out, nil
}

func (b *memBackend) CheckAvailability(_ context.Context, studentID uint64, classIDs []uint64) error {
    b.mu.Lock()
    defer b.mu.Unlock()
    return b.checkLocked(studentID, classIDs)
}

func (b *memBackend) TransitionBatch(_ context.Context, studentID uint64, token string, from []string, to string, reason *string) ([]model.Reservation, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    var batch []*model.Reservation
    for _, r := range b.reservations {
        if r.StudentID == studentID && r.BatchToken != nil && *r.BatchToken == token {
            batch = append(batch, r)
        }
    }
    if len(batch) == 0 {
        return nil, enrollment.ErrBatchNotFound
    }
    allTerminal := true
    for _, r := range batch {
        if !r.Terminal() {
            allTerminal = false
        }
    }
    if allTerminal {
        return nil, enrollment.ErrBatchNotFound
    }
    fromSet := make(map[string]struct{}, len(from))
    for _, s := range from {
        fromSet[s] = struct{}{}
    }
    var moved []model.Reservation
    for _, r := range batch {
        if _, ok := fromSet[r.Status]; !ok {
            continue
        }
        r.Status = to
        r.CancelReason = reason
        r.UpdatedAt = time.Now().UTC()
        moved = append(moved, *r)
    }
    sort.Slice(moved, func(i, j int) bool { return moved[i].ID < moved[j].ID })
    return moved, nil
}

func (b *memBackend) ExpiredPending(_ context.Context, status string, now time.Time) ([]model.Reservation, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    var out []model.Reservation
    for _, r := range b.reservations {
        if r.Status == status && r.HoldExpiresAt != nil && r.HoldExpiresAt.Before(now) {
            out = append(out, *r)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

func (b *memBackend) LapseReservations(_ context.Context, ids []uint64, from, to string) (int64, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    var n int64
    for _, id := range ids {
        if r, ok := b.reservations[id]; ok && r.Status == from {
            r.Status = to
            r.UpdatedAt = time.Now().UTC()
            n++
        }
    }
    return n, nil
}

func (b *memBackend) HasConfirmed(_ context.Context, studentID uint64) (bool, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    for _, r := range b.reservations {
        if r.StudentID == studentID && r.Status == model.StatusActive {
            return true, nil
        }
    }
    return false, nil
}

func (b *memBackend) ListByStudent(_ context.Context, studentID uint64) ([]model.Reservation, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    var out []model.Reservation
    for _, r := range b.reservations {
        if r.StudentID == studentID {
            out = append(out, *r)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
    return out, nil
}

// ----- ClassStore -----

func (b *memBackend) ActiveTerm(context.Context) (model.Term, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    return b.term, nil
}

func (b *memBackend) ClassesByIDs(_ context.Context, ids []uint64) ([]model.Class, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    var out []model.Class
    for _, id := range ids {
        if c, ok := b.classes[id]; ok {
            out = append(out, c)
        }
    }
    return out, nil
}

func (b *memBackend) ActiveClasses(_ context.Context, termID uint64) ([]model.Class, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    var out []model.Class
    for _, c := range b.classes {
        if c.TermID == termID && c.IsActive {
            out = append(out, c)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

// ----- RecipientStore -----

func (b *memBackend) StudentRecipients(_ context.Context, studentID uint64) ([]model.Recipient, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    s, ok := b.students[studentID]
    if !ok {
        return nil, fmt.Errorf("unknown student %d", studentID)
    }
    out := []model.Recipient{s}
    out = append(out, b.guardians[studentID]...)
    return out, nil
}

func (b *memBackend) ClassRecipients(_ context.Context, classID uint64) ([]model.Recipient, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    seen := make(map[uint64]struct{})
    var out []model.Recipient
    var ids []uint64
    for _, r := range b.reservations {
        if r.ClassID == classID && r.Status == model.StatusActive {
            if _, ok := seen[r.StudentID]; !ok {
                seen[r.StudentID] = struct{}{}
                ids = append(ids, r.StudentID)
            }
        }
    }
    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
    for _, sid := range ids {
        if s, ok := b.students[sid]; ok {
            out = append(out, s)
        }
        out = append(out, b.guardians[sid]...)
    }
    return out, nil
}

// ----- ReferralStore -----

func (b *memBackend) ConvertPending(_ context.Context, inviteeStudentID uint64) (bool, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    ref, ok := b.referrals[inviteeStudentID]
    if !ok {
        return false, nil
    }
    if ref.Status != model.ReferralPending && ref.Status != model.ReferralRegistered {
        return false, nil
    }
    ref.Status = model.ReferralConverted
    now := time.Now().UTC()
    ref.ConvertedAt = &now
    return true, nil
}

// ----- DedupStore -----

func dedupKey(recipient, notifType, ref string) string {
    return recipient + "|" + notifType + "|" + ref
}

func (b *memBackend) AlreadySent(_ context.Context, recipient, notifType, ref string) (bool, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    _, ok := b.sentRecords[dedupKey(recipient, notifType, ref)]
    return ok, nil
}

func (b *memBackend) RecordSent(_ context.Context, recipient, notifType, ref string) error {
    b.mu.Lock()
    defer b.mu.Unlock()
    // Duplicate insert is success, matching the unique-index contract.
    b.sentRecords[dedupKey(recipient, notifType, ref)] = struct{}{}
    return nil
}

func (b *memBackend) recordCount() int {
    b.mu.Lock()
    defer b.mu.Unlock()
    return len(b.sentRecords)
}

// ----- PaymentSessionStore -----

func (b *memBackend) Create(_ context.Context, s model.PaymentSession) error {
    b.mu.Lock()
    defer b.mu.Unlock()
    if _, exists := b.sessions[s.Token]; exists {
        return fmt.Errorf("session %s already exists", s.Token)
    }
    cp := s
    b.sessions[s.Token] = &cp
    return nil
}

func (b *memBackend) Get(_ context.Context, token string) (model.PaymentSession, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    s, ok := b.sessions[token]
    if !ok {
        return model.PaymentSession{}, enrollment.ErrSessionNotFound
    }
    return *s, nil
}

func (b *memBackend) Complete(_ context.Context, token string, now time.Time) (model.PaymentSession, bool, error) {
    b.mu.Lock()
    defer b.mu.Unlock()
    s, ok := b.sessions[token]
    if !ok {
        return model.PaymentSession{}, false, enrollment.ErrSessionNotFound
    }
    if s.CompletedAt != nil {
        return *s, false, nil
    }
    s.CompletedAt = &now
    return *s, true, nil
}

// fakeSender records deliveries and can be told to fail.
type fakeSender struct {
    mu       sync.Mutex
    sent     []sentMsg
    failWith error
    failFor  string // recipient key that always fails, if set
}

type sentMsg struct {
    recipient model.Recipient
    template  string
    params    map[string]string
}

func (f *fakeSender) Send(_ context.Context, rcpt model.Recipient, templateKey string, params map[string]string) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    if f.failWith != nil {
        return f.failWith
    }
    if f.failFor != "" && rcpt.Key == f.failFor {
        return errSendBroken
    }
    f.sent = append(f.sent, sentMsg{recipient: rcpt, template: templateKey, params: params})
    return nil
}

func (f *fakeSender) count() int {
    f.mu.Lock()
    defer f.mu.Unlock()
    return len(f.sent)
}

func (f *fakeSender) fail(err error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.failWith = err
}

// fakePublisher records emitted domain events.
type fakePublisher struct {
    mu        sync.Mutex
    confirmed int
    lapsed    int
}

func (f *fakePublisher) BatchConfirmed(context.Context, uint64, string, []uint64) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.confirmed++
    return nil
}

func (f *fakePublisher) BatchLapsed(context.Context, uint64, string, []uint64) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.lapsed++
    return nil
}

// fakeProvider returns a canned redirect URL.
type fakeProvider struct {
    lastRef string
    err     error
}

func (f *fakeProvider) CreateCharge(_ context.Context, req enrollment.ChargeRequest) (string, error) {
    if f.err != nil {
        return "", f.err
    }
    f.lastRef = req.SessionToken
    return "https://pay.example.com/checkout/" + req.SessionToken, nil
}

var errSendBroken = errors.New("smtp relay down")

// interface compliance
var (
    _ enrollment.ReservationStore    = (*memBackend)(nil)
    _ enrollment.ClassStore          = (*memBackend)(nil)
    _ enrollment.RecipientStore      = (*memBackend)(nil)
    _ enrollment.ReferralStore       = (*memBackend)(nil)
    _ enrollment.DedupStore          = (*memBackend)(nil)
    _ enrollment.PaymentSessionStore = (*memBackend)(nil)
    _ enrollment.NotificationSender  = (*fakeSender)(nil)
    _ enrollment.EventPublisher      = (*fakePublisher)(nil)
    _ enrollment.PaymentProvider     = (*fakeProvider)(nil)
)
