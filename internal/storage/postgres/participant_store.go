package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"brainark-core/internal/domain"
	"brainark-core/internal/storage"
)

// ParticipantStore implements storage.ParticipantStore using
// PostgreSQL. The claimed list lives in its own table whose BIGSERIAL
// ordinal preserves append order; the airdrop counters are a single
// row updated atomically.
type ParticipantStore struct {
	pool *Pool
}

// NewParticipantStore creates a new ParticipantStore.
func NewParticipantStore(pool *Pool) *ParticipantStore {
	return &ParticipantStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ParticipantStore = (*ParticipantStore)(nil)

// Get retrieves a participant by address. Returns ErrNotFound if the
// address has never been seen.
func (s *ParticipantStore) Get(ctx context.Context, address string) (*domain.Participant, error) {
	query := `
		SELECT address, referral_code, referrer, completed_tasks,
		       has_claimed, paid, total_earned::text, referral_count,
		       distribution_batch, status, claimed_at
		FROM participants
		WHERE address = $1
	`

	var (
		p         domain.Participant
		tasksJSON []byte
		earned    string
		status    string
	)
	err := s.pool.QueryRow(ctx, query, address).Scan(
		&p.Address,
		&p.ReferralCode,
		&p.Referrer,
		&tasksJSON,
		&p.HasClaimed,
		&p.Paid,
		&earned,
		&p.ReferralCount,
		&p.DistributionBatch,
		&status,
		&p.ClaimedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}

	if err := json.Unmarshal(tasksJSON, &p.CompletedTasks); err != nil {
		return nil, fmt.Errorf("decode completed tasks: %w", err)
	}
	if p.CompletedTasks == nil {
		p.CompletedTasks = make(map[string]bool)
	}
	if p.TotalEarned, err = parseNumeric(earned); err != nil {
		return nil, err
	}
	p.Status = domain.ParticipantStatus(status)
	return &p, nil
}

// Put inserts or replaces a participant.
func (s *ParticipantStore) Put(ctx context.Context, p *domain.Participant) error {
	tasksJSON, err := json.Marshal(p.CompletedTasks)
	if err != nil {
		return fmt.Errorf("encode completed tasks: %w", err)
	}

	query := `
		INSERT INTO participants (
			address, referral_code, referrer, completed_tasks,
			has_claimed, paid, total_earned, referral_count,
			distribution_batch, status, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (address) DO UPDATE SET
			referral_code = EXCLUDED.referral_code,
			referrer = EXCLUDED.referrer,
			completed_tasks = EXCLUDED.completed_tasks,
			has_claimed = EXCLUDED.has_claimed,
			paid = EXCLUDED.paid,
			total_earned = EXCLUDED.total_earned,
			referral_count = EXCLUDED.referral_count,
			distribution_batch = EXCLUDED.distribution_batch,
			status = EXCLUDED.status,
			claimed_at = EXCLUDED.claimed_at
	`

	_, err = s.pool.Exec(ctx, query,
		p.Address,
		p.ReferralCode,
		p.Referrer,
		tasksJSON,
		p.HasClaimed,
		p.Paid,
		p.TotalEarned.String(),
		p.ReferralCount,
		p.DistributionBatch,
		string(p.Status),
		p.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("put participant: %w", err)
	}
	return nil
}

// AppendClaimed appends an address to the claimed participant list
// and returns its 1-based ordinal. Returns ErrDuplicateKey if the
// address is already on the list.
func (s *ParticipantStore) AppendClaimed(ctx context.Context, address string) (int64, error) {
	query := `
		INSERT INTO claimed_participants (address)
		VALUES ($1)
		RETURNING ordinal
	`

	var ordinal int64
	if err := s.pool.QueryRow(ctx, query, address).Scan(&ordinal); err != nil {
		if isDuplicateKeyError(err) {
			return 0, storage.ErrDuplicateKey
		}
		return 0, fmt.Errorf("append claimed: %w", err)
	}
	return ordinal, nil
}

// ClaimedRange returns claimed addresses in append order for
// [offset, offset+limit). Returns ErrInvalidInput if offset exceeds
// the claimed count.
func (s *ParticipantStore) ClaimedRange(ctx context.Context, offset, limit int64) ([]string, error) {
	if offset < 0 || limit < 0 {
		return nil, storage.ErrInvalidInput
	}

	count, err := s.ClaimedCount(ctx)
	if err != nil {
		return nil, err
	}
	if offset > count {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT address
		FROM claimed_participants
		ORDER BY ordinal ASC
		OFFSET $1 LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("claimed range: %w", err)
	}
	defer rows.Close()

	addresses := make([]string, 0, limit)
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan claimed row: %w", err)
		}
		addresses = append(addresses, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claimed rows: %w", err)
	}
	return addresses, nil
}

// ClaimedCount returns the number of claimed participants.
func (s *ParticipantStore) ClaimedCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM claimed_participants`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("claimed count: %w", err)
	}
	return count, nil
}

// AppendReferral stores a referral edge. Append-only.
func (s *ParticipantStore) AppendReferral(ctx context.Context, edge *domain.ReferralEdge) error {
	query := `
		INSERT INTO referral_edges (referrer, referee, bonus, status, ts)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query,
		edge.Referrer,
		edge.Referee,
		edge.Bonus.String(),
		edge.Status,
		edge.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append referral: %w", err)
	}
	return nil
}

// ReferralsByReferrer retrieves all edges credited to a referrer.
func (s *ParticipantStore) ReferralsByReferrer(ctx context.Context, referrer string) ([]*domain.ReferralEdge, error) {
	query := `
		SELECT referrer, referee, bonus::text, status, ts
		FROM referral_edges
		WHERE referrer = $1
		ORDER BY ts ASC, id ASC
	`

	rows, err := s.pool.Query(ctx, query, referrer)
	if err != nil {
		return nil, fmt.Errorf("get referrals: %w", err)
	}
	defer rows.Close()

	var edges []*domain.ReferralEdge
	for rows.Next() {
		var (
			edge  domain.ReferralEdge
			bonus string
		)
		if err := rows.Scan(&edge.Referrer, &edge.Referee, &bonus, &edge.Status, &edge.Timestamp); err != nil {
			return nil, fmt.Errorf("scan referral row: %w", err)
		}
		if edge.Bonus, err = parseNumeric(bonus); err != nil {
			return nil, err
		}
		edges = append(edges, &edge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referral rows: %w", err)
	}
	return edges, nil
}

// AddCounters atomically adds to the claimed-amount and
// referral-bonus running totals.
func (s *ParticipantStore) AddCounters(ctx context.Context, claimed, referralBonus decimal.Decimal) error {
	query := `
		UPDATE airdrop_counters
		SET total_claimed = total_claimed + $1,
		    total_referral_bonus = total_referral_bonus + $2
		WHERE id = 1
	`

	_, err := s.pool.Exec(ctx, query, claimed.String(), referralBonus.String())
	if err != nil {
		return fmt.Errorf("add counters: %w", err)
	}
	return nil
}

// Counters returns the running claimed-amount and referral-bonus totals.
func (s *ParticipantStore) Counters(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	query := `
		SELECT total_claimed::text, total_referral_bonus::text
		FROM airdrop_counters
		WHERE id = 1
	`

	var claimedStr, bonusStr string
	if err := s.pool.QueryRow(ctx, query).Scan(&claimedStr, &bonusStr); err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, fmt.Errorf("airdrop counters: %w", err)
	}

	claimed, err := parseNumeric(claimedStr)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	bonus, err := parseNumeric(bonusStr)
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	return claimed, bonus, nil
}
