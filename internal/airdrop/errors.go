// Package airdrop implements the free-claim distribution: social task
// verification, referral-aware claims and the batched payout pass.
package airdrop

import "errors"

// State errors. A claim attempt in the wrong state is rejected, never
// absorbed.
var (
	// ErrTasksNotCompleted is returned when a claim is attempted before
	// every required social task is verified.
	ErrTasksNotCompleted = errors.New("social tasks not completed")

	// ErrAlreadyClaimed is returned on a second claim by the same address.
	ErrAlreadyClaimed = errors.New("already claimed")

	// ErrSelfReferral is returned when an address names itself as referrer.
	ErrSelfReferral = errors.New("cannot refer yourself")

	// ErrReferrerNotParticipant is returned when the named referrer has
	// never claimed.
	ErrReferrerNotParticipant = errors.New("referrer must be a participant")

	// ErrDistributionInactive is returned while the distribution is paused.
	ErrDistributionInactive = errors.New("distribution not active")

	// ErrTargetNotReached is returned by TriggerDistribution before the
	// participant target is met.
	ErrTargetNotReached = errors.New("target not reached")

	// ErrDistributionNotTriggered is returned by DistributeTokens before
	// TriggerDistribution succeeds.
	ErrDistributionNotTriggered = errors.New("distribution not triggered")

	// ErrOffsetOutOfBounds is returned when a payout offset exceeds the
	// claimed participant count.
	ErrOffsetOutOfBounds = errors.New("offset out of bounds")
)

// Authorization errors.
var (
	// ErrNotVerifier is returned when task verification is attempted by
	// an unauthorized caller.
	ErrNotVerifier = errors.New("not authorized verifier")

	// ErrNotOwner is returned when a privileged operation is invoked by
	// anyone but the owner.
	ErrNotOwner = errors.New("caller is not the owner")
)
