package domain

import "github.com/shopspring/decimal"

// ParticipantStatus tracks the airdrop claim lifecycle.
type ParticipantStatus string

const (
	StatusNotRegistered ParticipantStatus = "NOT_REGISTERED"
	StatusTasksPending  ParticipantStatus = "TASKS_PENDING"
	StatusEligible      ParticipantStatus = "ELIGIBLE"
	StatusClaimed       ParticipantStatus = "CLAIMED"
)

// Social task identifiers. All three are required before a claim.
const (
	TaskTwitterFollow  = "twitter_follow"
	TaskTwitterRetweet = "twitter_retweet"
	TaskTelegramJoin   = "telegram_join"
)

// RequiredTasks returns the fixed set of tasks a participant must
// complete to become eligible.
func RequiredTasks() []string {
	return []string{TaskTwitterFollow, TaskTwitterRetweet, TaskTelegramJoin}
}

// Participant is one airdrop participant. Created on first
// eligibility check or task verification, never deleted.
type Participant struct {
	Address           string
	ReferralCode      string
	Referrer          string // empty when claimed without a referrer
	CompletedTasks    map[string]bool
	HasClaimed        bool
	Paid              bool // set once a distribution pass has paid this participant
	TotalEarned       decimal.Decimal
	ReferralCount     int64
	DistributionBatch int64 // cohort index assigned at claim time
	Status            ParticipantStatus
	ClaimedAt         int64 // Unix timestamp in milliseconds, 0 until claimed
}

// TasksComplete reports whether every required task is complete.
func (p *Participant) TasksComplete() bool {
	for _, task := range RequiredTasks() {
		if !p.CompletedTasks[task] {
			return false
		}
	}
	return true
}

// ReferralEdge records a referral bonus paid between two distinct,
// already-participating addresses. Append-only.
type ReferralEdge struct {
	Referrer  string
	Referee   string
	Bonus     decimal.Decimal
	Status    string // "paid"
	Timestamp int64  // Unix timestamp in milliseconds
}

// AirdropStats is the aggregate airdrop state.
type AirdropStats struct {
	TotalParticipants     int64
	TotalClaimed          decimal.Decimal // BAK claimed by participants
	TotalReferralBonuses  decimal.Decimal
	RemainingSupply       decimal.Decimal
	DistributionActive    bool
	DistributionTriggered bool
}
