package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vultisig/fluidpay/common"
	"github.com/vultisig/fluidpay/internal/types"
	"github.com/vultisig/fluidpay/storage"
)

const settlementColumns = `id, request_id, caller, token, amount_in::text, min_out::text,
	COALESCE(amount_out::text, ''), COALESCE(fee::text, ''), COALESCE(deposited::text, ''),
	status, error_code, error_message, created_at, updated_at`

func (p *PostgresBackend) InsertSettlement(ctx context.Context, s types.Settlement) error {
	query := `
		INSERT INTO settlements (
			id, request_id, caller, token, amount_in, min_out, amount_out, fee, deposited,
			status, error_code, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, NULLIF($7, '')::numeric, NULLIF($8, '')::numeric,
			NULLIF($9, '')::numeric, $10, $11, $12, $13, $14)`

	_, err := p.pool.Exec(ctx, query,
		s.ID,
		s.RequestID,
		s.Caller,
		s.Token,
		s.AmountIn,
		zeroIfEmpty(s.MinOut),
		s.AmountOut,
		s.Fee,
		s.Deposited,
		string(s.Status),
		s.ErrorCode,
		s.ErrorMessage,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert settlement: %w", err)
	}
	return nil
}

func (p *PostgresBackend) UpdateSettlement(ctx context.Context, s types.Settlement) error {
	query := `
		UPDATE settlements
		SET amount_out = NULLIF($2, '')::numeric,
			fee = NULLIF($3, '')::numeric,
			deposited = NULLIF($4, '')::numeric,
			status = $5,
			error_code = $6,
			error_message = $7,
			updated_at = $8
		WHERE id = $1`

	tag, err := p.pool.Exec(ctx, query,
		s.ID,
		s.AmountOut,
		s.Fee,
		s.Deposited,
		string(s.Status),
		s.ErrorCode,
		s.ErrorMessage,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update settlement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (p *PostgresBackend) GetSettlement(ctx context.Context, id uuid.UUID) (*types.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`
	s, err := scanSettlement(p.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	return s, nil
}

func (p *PostgresBackend) GetSettlementByRequestID(ctx context.Context, requestID string) (*types.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE request_id = $1`
	s, err := scanSettlement(p.pool.QueryRow(ctx, query, requestID))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get settlement by request id: %w", err)
	}
	return s, nil
}

func (p *PostgresBackend) ListSettlements(ctx context.Context, caller string, sort string, take int, skip int) ([]types.Settlement, error) {
	// Both values come from an allowlist, so they are safe to interpolate.
	orderBy, direction := common.GetSortingCondition(sort)
	query := fmt.Sprintf(`SELECT %s FROM settlements
		WHERE ($1 = '' OR caller = $1)
		ORDER BY %s %s, id ASC
		LIMIT $2 OFFSET $3`, settlementColumns, orderBy, direction)

	rows, err := p.pool.Query(ctx, query, caller, take, skip)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	out := []types.Settlement{}
	for rows.Next() {
		s, err := scanSettlement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	return out, nil
}

func zeroIfEmpty(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

func scanSettlement(row pgx.Row) (*types.Settlement, error) {
	var s types.Settlement
	var status string
	err := row.Scan(
		&s.ID,
		&s.RequestID,
		&s.Caller,
		&s.Token,
		&s.AmountIn,
		&s.MinOut,
		&s.AmountOut,
		&s.Fee,
		&s.Deposited,
		&status,
		&s.ErrorCode,
		&s.ErrorMessage,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = types.SettlementStatus(status)
	return &s, nil
}
