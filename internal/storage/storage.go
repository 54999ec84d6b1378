// Package storage holds export sinks for ledger data.
package storage

import "github.com/0xNedAlbo/midcurve-services-sub002/internal/model"

// Exporter defines a sink for ledger events.
type Exporter interface {
	PutEventBatch(events []*model.LedgerEvent) error
}
