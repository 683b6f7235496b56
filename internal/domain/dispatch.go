package domain

import "time"

// Shop is the read-only view of a shop needed for dispatch.
type Shop struct {
	ID      int64
	OwnerID int64
	Title   string
	Point   Point
}

// CandidateSource tells where a candidate's position came from.
type CandidateSource string

// Candidate sources
const (
	SourceLive    CandidateSource = "live"
	SourceDurable CandidateSource = "durable"
)

// Candidate is a courier considered eligible for one dispatch run.
type Candidate struct {
	CourierID  int64
	UserID     int64
	Mode       CourierMode
	Point      Point
	DistanceKm float64
	Source     CandidateSource
}

// OutcomeKind classifies the result of a dispatch run.
type OutcomeKind string

// Dispatch outcomes
const (
	OutcomeAssigned       OutcomeKind = "assigned"
	OutcomeNoCourierFound OutcomeKind = "no_courier_found"
	// OutcomeAborted means the order left "searching" while offers were running.
	OutcomeAborted OutcomeKind = "aborted"
)

// DispatchOutcome is the result of dispatch(order, shop).
type DispatchOutcome struct {
	Kind      OutcomeKind
	CourierID int64
	Offered   int
}

// AssignResult describes a finalized assignment.
type AssignResult struct {
	OrderID    int64
	CourierID  int64
	AssignedAt time.Time
	Estimate   *Estimate
	Price      *int64
	// AlreadyAssigned is set when the call was a repeat for the same courier.
	AlreadyAssigned bool
}

// Estimate is a computed route cost.
type Estimate struct {
	DistanceKm  float64
	DurationMin float64
}
