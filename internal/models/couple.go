package models

import "time"

// CoupleStatus tracks the relationship lifecycle in the external store.
type CoupleStatus string

const (
	CoupleStatusActive     CoupleStatus = "active"
	CoupleStatusEnded      CoupleStatus = "ended"
	CoupleStatusRestricted CoupleStatus = "restricted"
)

// Couple is the relationship record the archival flow moves between active,
// restricted and ended states. Restricted means the rows still exist but the
// relationship is over; ended means shared data was deleted too.
type Couple struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	PartnerID string       `json:"partnerId"`
	Status    CoupleStatus `json:"status"`
	StartedAt time.Time    `json:"startedAt"`
	EndedAt   *time.Time   `json:"endedAt,omitempty"`
}

// Profile is the sanitized per-partner slice included in exports:
// identifiers and the join date, never credentials or tokens.
type Profile struct {
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// DatePlan is a planned shared activity.
type DatePlan struct {
	ID          string    `json:"id"`
	CoupleID    string    `json:"coupleId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	PlannedAt   time.Time `json:"plannedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Memory is a saved shared moment.
type Memory struct {
	ID          string    `json:"id"`
	CoupleID    string    `json:"coupleId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	PhotoURL    string    `json:"photoUrl,omitempty"`
	HappenedAt  time.Time `json:"happenedAt"`
	CreatedAt   time.Time `json:"createdAt"`
}
