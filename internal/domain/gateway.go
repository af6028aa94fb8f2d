package domain

import "context"

// Storage keys. Three independent keys; any subset may be absent on first run
// and the owning component defaults to an empty structure, never failing
// startup. Key names match the original browser-storage layout so exported
// state stays importable.
const (
	KeyHoldings     = "crypto_portfolio"
	KeyTransactions = "portfolio_transactions"
	KeyAlerts       = "price_alerts"
)

// PersistenceGateway provides durable key-value load/save of JSON documents.
// The ledger and alert store receive it as an injected capability
// (load-on-construct, save-on-each-mutating-call); they never reach for a
// shared module-level store.
type PersistenceGateway interface {
	// Load unmarshals the value stored under key into out. It returns
	// found=false when the key has never been written. A value that fails to
	// parse is reported as ErrMalformedState; transport failures as
	// ErrPersistenceUnavailable. Unknown fields in the stored document are
	// ignored so newer state stays readable by older code.
	Load(ctx context.Context, key string, out any) (found bool, err error)

	// Save marshals value as JSON and stores it under key, replacing any
	// previous value. Failures are reported as ErrPersistenceUnavailable.
	Save(ctx context.Context, key string, value any) error
}
