package storage

import (
	"context"

	"propertyBank/internal/model"
)

// SettlementSink receives the audit trail of completed settlements.
type SettlementSink interface {
	PutSettlements(ctx context.Context, records []model.SettlementRecord) error
}

// Fanout writes every batch to each sink in order and stops at the first
// failure.
type Fanout []SettlementSink

func (f Fanout) PutSettlements(ctx context.Context, records []model.SettlementRecord) error {
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.PutSettlements(ctx, records); err != nil {
			return err
		}
	}
	return nil
}
