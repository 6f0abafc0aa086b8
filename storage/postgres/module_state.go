package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vultisig/fluidpay/internal/types"
	"github.com/vultisig/fluidpay/storage"
)

func (p *PostgresBackend) RecordConfigChange(ctx context.Context, event types.ConfigEvent) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op returning pgx.ErrTxClosed.
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO config_events (action, actor, params, created_at)
		VALUES ($1, $2, $3, $4)`,
		event.Action, event.Actor, []byte(event.Params), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert config event: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO module_state (id, params, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET params = EXCLUDED.params, updated_at = EXCLUDED.updated_at`,
		[]byte(event.Params), event.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert module state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (p *PostgresBackend) ListConfigEvents(ctx context.Context, take int) ([]types.ConfigEvent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, action, actor, params, created_at
		FROM config_events
		ORDER BY id DESC
		LIMIT $1`, take)
	if err != nil {
		return nil, fmt.Errorf("list config events: %w", err)
	}
	defer rows.Close()

	out := []types.ConfigEvent{}
	for rows.Next() {
		var e types.ConfigEvent
		var params []byte
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &params, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan config event: %w", err)
		}
		e.Params = json.RawMessage(params)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *PostgresBackend) LoadModuleState(ctx context.Context) (json.RawMessage, error) {
	var params []byte
	err := p.pool.QueryRow(ctx, `SELECT params FROM module_state WHERE id = 1`).Scan(&params)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("load module state: %w", err)
	}
	return json.RawMessage(params), nil
}
