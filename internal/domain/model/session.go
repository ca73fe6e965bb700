package model

import "github.com/shopspring/decimal"

type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusConfirmed SessionStatus = "confirmed"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// TutoringSession is the scheduling collaborator's record; this service reads
// the amount and student and only ever writes the confirmed status.
type TutoringSession struct {
	ID          string
	StudentID   string
	TutorID     string
	Title       string
	TotalAmount decimal.Decimal
	Status      SessionStatus
}

// AccessKind names content a completed payment can unlock.
type AccessKind string

const (
	AccessResource AccessKind = "resource"
	AccessVideo    AccessKind = "video"
)
