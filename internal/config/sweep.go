package config

import "time"

// SweepConfig controls the background jobs and the hold deadlines
// they enforce.  Setting an interval to 0 disables that sweep; the
// hold durations also reach the enrollment ledger, which stamps them
// onto new pending reservations.
type SweepConfig struct {
    ExpiryInterval   time.Duration // how often overdue holds are lapsed
    ReminderInterval time.Duration // how often reminder buckets are evaluated
    EtransferHold    time.Duration // seat hold for e-transfer batches
    ApprovalWindow   time.Duration // seat hold for manual-approval batches
}

// LoadSweepConfig reads the sweep settings from environment
// variables, with defaults suited to the reminder bucket widths: the
// reminder sweep must run at least once per hour or the 1h bucket can
// be skipped over entirely.
func LoadSweepConfig() SweepConfig {
    return SweepConfig{
        ExpiryInterval:   envDur("SWEEP_EXPIRY_INTERVAL", 15*time.Minute),
        ReminderInterval: envDur("SWEEP_REMINDER_INTERVAL", 10*time.Minute),
        EtransferHold:    envDur("ETRANSFER_HOLD", 24*time.Hour),
        ApprovalWindow:   envDur("APPROVAL_WINDOW", 72*time.Hour),
    }
}
