package airdrop

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
	"brainark-core/internal/observability"
	"brainark-core/internal/storage"
)

// Distribution parameters. Fixed at deployment, never changed at
// runtime.
var (
	// CoinsPerUser is the BAK credited to each claimer.
	CoinsPerUser = decimal.NewFromInt(10)

	// ReferralBonus is the BAK credited to a claim's referrer.
	ReferralBonus = decimal.NewFromFloat(3.2)

	// TotalAirdropSupply is the BAK allocation for the distribution.
	TotalAirdropSupply = decimal.NewFromInt(10_000_000)

	// ReferralPool is the BAK allocation reserved for referral bonuses.
	ReferralPool = decimal.NewFromInt(5_000_000)
)

const (
	// DefaultTargetParticipants gates TriggerDistribution.
	DefaultTargetParticipants int64 = 1_000_000

	// DefaultBatchSize is the distribution cohort size.
	DefaultBatchSize int64 = 1000
)

// Engine runs the claim state machine over a participant store. The
// store serializes concurrent claims; the engine only guards its own
// flags and the verifier set.
type Engine struct {
	participants storage.ParticipantStore

	owner     string
	target    int64
	batchSize int64

	mu        sync.Mutex
	verifiers map[string]bool
	paused    bool
	triggered bool

	log *log.Logger
	now func() time.Time
}

// Config carries the engine's fixed parameters. Zero values fall back
// to the deployment defaults.
type Config struct {
	Owner              string
	TargetParticipants int64
	BatchSize          int64
}

// NewEngine creates an airdrop engine over the given store. The owner
// is implicitly an authorized verifier.
func NewEngine(participants storage.ParticipantStore, cfg Config, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.TargetParticipants == 0 {
		cfg.TargetParticipants = DefaultTargetParticipants
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	owner := strings.ToLower(cfg.Owner)
	return &Engine{
		participants: participants,
		owner:        owner,
		target:       cfg.TargetParticipants,
		batchSize:    cfg.BatchSize,
		verifiers:    map[string]bool{owner: true},
		log:          logger,
		now:          time.Now,
	}
}

// AddVerifier authorizes an address to verify social tasks.
func (e *Engine) AddVerifier(caller, address string) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.mu.Lock()
	e.verifiers[strings.ToLower(address)] = true
	e.mu.Unlock()
	e.log.Printf("verifier added: %s", address)
	return nil
}

// VerifySocialTask records the outcome of one social task check for
// an address. First contact creates the participant in TASKS_PENDING;
// completing the full required set promotes it to ELIGIBLE.
func (e *Engine) VerifySocialTask(ctx context.Context, caller, address, taskID string, result bool) error {
	if !e.isVerifier(caller) {
		return ErrNotVerifier
	}

	p, err := e.getOrCreate(ctx, address)
	if err != nil {
		return err
	}
	if p.HasClaimed {
		return ErrAlreadyClaimed
	}

	p.CompletedTasks[taskID] = result
	if p.TasksComplete() {
		p.Status = domain.StatusEligible
	} else {
		p.Status = domain.StatusTasksPending
	}
	if err := e.participants.Put(ctx, p); err != nil {
		return fmt.Errorf("store participant: %w", err)
	}

	e.log.Printf("task verified: address=%s task=%s result=%t status=%s", p.Address, taskID, result, p.Status)
	return nil
}

// CanClaim reports whether address can claim right now. Pure read.
func (e *Engine) CanClaim(ctx context.Context, address string) (bool, error) {
	p, err := e.participants.Get(ctx, strings.ToLower(address))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Status == domain.StatusEligible && !p.HasClaimed, nil
}

// Claim credits CoinsPerUser to an eligible address and transitions
// it to CLAIMED. A non-empty referrer must be a distinct address that
// has itself claimed; it earns ReferralBonus and a referral count
// bump. Each address claims at most once.
func (e *Engine) Claim(ctx context.Context, address, referrer string) (*domain.Participant, error) {
	if e.isPaused() {
		observability.RecordClaimRejection("distribution_inactive")
		return nil, ErrDistributionInactive
	}
	address = strings.ToLower(address)
	referrer = strings.ToLower(referrer)

	p, err := e.participants.Get(ctx, address)
	if errors.Is(err, storage.ErrNotFound) {
		observability.RecordClaimRejection("tasks_not_completed")
		return nil, ErrTasksNotCompleted
	}
	if err != nil {
		return nil, err
	}
	if p.HasClaimed {
		observability.RecordClaimRejection("already_claimed")
		return nil, ErrAlreadyClaimed
	}
	if p.Status != domain.StatusEligible {
		observability.RecordClaimRejection("tasks_not_completed")
		return nil, ErrTasksNotCompleted
	}

	var ref *domain.Participant
	if referrer != "" {
		if referrer == address {
			observability.RecordClaimRejection("self_referral")
			return nil, ErrSelfReferral
		}
		ref, err = e.participants.Get(ctx, referrer)
		if errors.Is(err, storage.ErrNotFound) {
			observability.RecordClaimRejection("referrer_not_participant")
			return nil, ErrReferrerNotParticipant
		}
		if err != nil {
			return nil, err
		}
		if !ref.HasClaimed {
			observability.RecordClaimRejection("referrer_not_participant")
			return nil, ErrReferrerNotParticipant
		}
	}

	ordinal, err := e.participants.AppendClaimed(ctx, address)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return nil, ErrAlreadyClaimed
	}
	if err != nil {
		return nil, fmt.Errorf("append claimed: %w", err)
	}

	now := e.now().UnixMilli()
	p.HasClaimed = true
	p.Status = domain.StatusClaimed
	p.Referrer = referrer
	p.TotalEarned = p.TotalEarned.Add(CoinsPerUser)
	p.DistributionBatch = (ordinal + e.batchSize - 1) / e.batchSize
	p.ClaimedAt = now
	if err := e.participants.Put(ctx, p); err != nil {
		return nil, fmt.Errorf("store participant: %w", err)
	}

	bonus := decimal.Zero
	if ref != nil {
		ref.TotalEarned = ref.TotalEarned.Add(ReferralBonus)
		ref.ReferralCount++
		if err := e.participants.Put(ctx, ref); err != nil {
			return nil, fmt.Errorf("store referrer: %w", err)
		}
		edge := &domain.ReferralEdge{
			Referrer:  referrer,
			Referee:   address,
			Bonus:     ReferralBonus,
			Status:    "paid",
			Timestamp: now,
		}
		if err := e.participants.AppendReferral(ctx, edge); err != nil {
			return nil, fmt.Errorf("append referral: %w", err)
		}
		bonus = ReferralBonus
	}

	if err := e.participants.AddCounters(ctx, CoinsPerUser, bonus); err != nil {
		return nil, fmt.Errorf("bump counters: %w", err)
	}

	observability.RecordClaim(ref != nil)
	e.log.Printf("claim: address=%s ordinal=%d batch=%d referrer=%s", address, ordinal, p.DistributionBatch, referrer)
	return p, nil
}

// TriggerDistribution arms the payout pass once the participant
// target is met.
func (e *Engine) TriggerDistribution(ctx context.Context, caller string) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	count, err := e.participants.ClaimedCount(ctx)
	if err != nil {
		return err
	}
	if count < e.target {
		return ErrTargetNotReached
	}
	e.mu.Lock()
	e.triggered = true
	e.mu.Unlock()
	e.log.Printf("distribution triggered at %d participants", count)
	return nil
}

// DistributeTokens pays out claimed participants in [offset,
// offset+limit) from the append-order claimed list and returns how
// many were paid. Idempotent per participant: a paid participant is
// skipped on repeat passes.
func (e *Engine) DistributeTokens(ctx context.Context, caller string, offset, limit int64) (int64, error) {
	if err := e.requireOwner(caller); err != nil {
		return 0, err
	}
	if !e.isTriggered() {
		return 0, ErrDistributionNotTriggered
	}

	addrs, err := e.participants.ClaimedRange(ctx, offset, limit)
	if errors.Is(err, storage.ErrInvalidInput) {
		return 0, ErrOffsetOutOfBounds
	}
	if err != nil {
		return 0, err
	}

	var paid int64
	for _, addr := range addrs {
		p, err := e.participants.Get(ctx, addr)
		if err != nil {
			return paid, fmt.Errorf("load participant %s: %w", addr, err)
		}
		if p.Paid {
			continue
		}
		p.Paid = true
		if err := e.participants.Put(ctx, p); err != nil {
			return paid, fmt.Errorf("store participant %s: %w", addr, err)
		}
		paid++
	}

	e.log.Printf("distributed: offset=%d limit=%d paid=%d", offset, limit, paid)
	return paid, nil
}

// GetAirdropStats returns the aggregate distribution state.
func (e *Engine) GetAirdropStats(ctx context.Context) (*domain.AirdropStats, error) {
	count, err := e.participants.ClaimedCount(ctx)
	if err != nil {
		return nil, err
	}
	claimed, bonuses, err := e.participants.Counters(ctx)
	if err != nil {
		return nil, err
	}
	observability.DefaultMetrics.ParticipantsTotal.Set(float64(count))
	return &domain.AirdropStats{
		TotalParticipants:     count,
		TotalClaimed:          claimed,
		TotalReferralBonuses:  bonuses,
		RemainingSupply:       TotalAirdropSupply.Sub(claimed).Sub(bonuses),
		DistributionActive:    !e.isPaused(),
		DistributionTriggered: e.isTriggered(),
	}, nil
}

// GetParticipants returns claimed participants in claim order for
// [offset, offset+limit).
func (e *Engine) GetParticipants(ctx context.Context, offset, limit int64) ([]*domain.Participant, error) {
	addrs, err := e.participants.ClaimedRange(ctx, offset, limit)
	if errors.Is(err, storage.ErrInvalidInput) {
		return nil, ErrOffsetOutOfBounds
	}
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Participant, 0, len(addrs))
	for _, addr := range addrs {
		p, err := e.participants.Get(ctx, addr)
		if err != nil {
			return nil, fmt.Errorf("load participant %s: %w", addr, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// GetReferrals returns the referral edges credited to an address.
func (e *Engine) GetReferrals(ctx context.Context, referrer string) ([]*domain.ReferralEdge, error) {
	return e.participants.ReferralsByReferrer(ctx, strings.ToLower(referrer))
}

// Pause stops claims. Reads keep working.
func (e *Engine) Pause(caller string) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.setPaused(true)
	e.log.Printf("distribution paused by %s", caller)
	return nil
}

// Unpause resumes claims.
func (e *Engine) Unpause(caller string) error {
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	e.setPaused(false)
	e.log.Printf("distribution unpaused by %s", caller)
	return nil
}

func (e *Engine) getOrCreate(ctx context.Context, address string) (*domain.Participant, error) {
	address = strings.ToLower(address)
	p, err := e.participants.Get(ctx, address)
	if errors.Is(err, storage.ErrNotFound) {
		return &domain.Participant{
			Address:        address,
			ReferralCode:   referralCode(address),
			CompletedTasks: make(map[string]bool),
			TotalEarned:    decimal.Zero,
			Status:         domain.StatusTasksPending,
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// referralCode derives a short shareable code from the address. Stable
// across restarts.
func referralCode(address string) string {
	sum := sha256.Sum256([]byte(address))
	return hex.EncodeToString(sum[:4])
}

func (e *Engine) isVerifier(caller string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.verifiers[strings.ToLower(caller)]
}

func (e *Engine) requireOwner(caller string) error {
	if !strings.EqualFold(caller, e.owner) {
		return ErrNotOwner
	}
	return nil
}

func (e *Engine) isPaused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) setPaused(v bool) {
	e.mu.Lock()
	e.paused = v
	e.mu.Unlock()
}

func (e *Engine) isTriggered() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.triggered
}
