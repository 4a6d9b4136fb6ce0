package model

import "time"

// Student represents an enrollable learner.  A student optionally
// links back to a portal user account; guardians are linked through
// the student_guardians join table and receive copies of every
// notification sent to the student.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owning portal account (nullable for staff-created records).
//  FullName  – display name.
//  Email     – contact address used for notifications.
//  CreatedAt – timestamp of creation.
type Student struct {
    ID        uint64    // students.id
    UserID    *uint64   // students.user_id (nullable)
    FullName  string    // students.full_name
    Email     string    // students.email
    CreatedAt time.Time // students.created_at
}

// Guardian represents a parent or guardian linked to one or more
// students.
type Guardian struct {
    ID       uint64 // guardians.id
    FullName string // guardians.full_name
    Email    string // guardians.email
}

// Recipient is a notification target resolved from a student and their
// linked guardians.  Key is the identity recorded in the notification
// log; it is namespaced ("student:12", "guardian:7") so student and
// guardian IDs cannot collide inside the dedup tuple.
type Recipient struct {
    Key   string // dedup identity, e.g. "student:12"
    Name  string // display name for message rendering
    Email string // delivery address
}
