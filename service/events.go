package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vultisig/fluidpay/internal/types"
	"github.com/vultisig/fluidpay/plugin/fluidpay"
	"github.com/vultisig/fluidpay/storage"
)

// EventLog logs module events and persists configuration changes so they
// survive a restart.
type EventLog struct {
	db     storage.DatabaseStorage
	logger *logrus.Entry
}

var (
	_ fluidpay.EventSink   = (*EventLog)(nil)
	_ fluidpay.ConfigStore = (*EventLog)(nil)
)

func NewEventLog(db storage.DatabaseStorage, logger *logrus.Logger) *EventLog {
	return &EventLog{db: db, logger: logger.WithField("service", "events")}
}

func (l *EventLog) Publish(_ context.Context, event fluidpay.Event) {
	l.logger.WithFields(logrus.Fields{
		"type":   event.Type,
		"action": event.Action,
		"actor":  event.Actor.Hex(),
	}).Debug("event published")
}

// SaveConfig records the change and the resulting parameter snapshot. The
// module does not apply the change unless this succeeds.
func (l *EventLog) SaveConfig(ctx context.Context, change fluidpay.ConfigChange) error {
	params, err := json.Marshal(change.Params)
	if err != nil {
		return fmt.Errorf("fail to marshal params: %w", err)
	}
	err = l.db.RecordConfigChange(context.WithoutCancel(ctx), types.ConfigEvent{
		Action:    change.Action,
		Actor:     change.Actor.Hex(),
		Params:    params,
		CreatedAt: change.Timestamp.UTC(),
	})
	if err != nil {
		l.logger.WithError(err).WithField("action", change.Action).Error("fail to record config change")
		return fmt.Errorf("fail to record config change: %w", err)
	}
	l.logger.WithField("action", change.Action).Info("config change recorded")
	return nil
}

// RestoreParams returns the last recorded module configuration, or fallback
// when nothing has been recorded yet.
func RestoreParams(ctx context.Context, db storage.DatabaseStorage, fallback fluidpay.Params) (fluidpay.Params, bool, error) {
	raw, err := db.LoadModuleState(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fallback, false, nil
		}
		return fluidpay.Params{}, false, fmt.Errorf("fail to load module state: %w", err)
	}
	var p fluidpay.Params
	if err := json.Unmarshal(raw, &p); err != nil {
		return fluidpay.Params{}, false, fmt.Errorf("fail to decode module state: %w", err)
	}
	if err := p.Validate(); err != nil {
		return fluidpay.Params{}, false, fmt.Errorf("stored module state: %w", err)
	}
	return p, true, nil
}
