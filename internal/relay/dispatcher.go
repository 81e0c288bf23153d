package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/dealerdesk-core/internal/cardroom"
)

// storeTimeout bounds one inbound persistence call so a slow disk cannot
// stall ping handling for long.
const storeTimeout = 5 * time.Second

// Store persists inbound domain events. *cardroom.Repository satisfies it.
type Store interface {
	SavePurchase(ctx context.Context, tenantID string, p *cardroom.Purchase) error
	SaveCustomer(ctx context.Context, tenantID string, c *cardroom.Customer) error
	SavePointEntry(ctx context.Context, tenantID string, e *cardroom.PointEntry) error
	RecordPlayerExit(ctx context.Context, tenantID string, x *cardroom.PlayerExit) error
}

// dispatcher turns decoded inbound events into Store writes.
type dispatcher struct {
	store    Store
	logger   Logger
	observer Observer
}

// dispatch handles one domain frame. Unknown events are logged and ignored;
// decode and store failures are returned for the caller to log.
func (d *dispatcher) dispatch(ctx context.Context, tenantID string, f Frame) error {
	ev, known, err := DecodeInbound(f.Event, f.Data)
	if !known {
		d.logger.Debug("ignoring unhandled hub event", "event", f.Event, "tenant_id", tenantID)
		return nil
	}
	if err != nil {
		return err
	}

	if d.store != nil {
		ctx, cancel := context.WithTimeout(ctx, storeTimeout)
		defer cancel()
		if err := d.persist(ctx, tenantID, ev); err != nil {
			return fmt.Errorf("storing %s: %w", f.Event, err)
		}
	}

	d.logger.Info("hub event stored", "event", f.Event, "tenant_id", tenantID)
	d.observer.Received(tenantID, ev)
	return nil
}

func (d *dispatcher) persist(ctx context.Context, tenantID string, ev Inbound) error {
	switch e := ev.(type) {
	case PurchaseRecorded:
		return d.store.SavePurchase(ctx, tenantID, &e.Purchase)
	case CustomerJoined:
		return d.store.SaveCustomer(ctx, tenantID, &e.Customer)
	case PointDebited:
		return d.store.SavePointEntry(ctx, tenantID, &e.Entry)
	case PlayerLeft:
		return d.store.RecordPlayerExit(ctx, tenantID, &e.Exit)
	default:
		return fmt.Errorf("no store route for %T", ev)
	}
}
