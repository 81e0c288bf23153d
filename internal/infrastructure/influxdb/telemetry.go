package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/dealerdesk-core/internal/relay"
)

// Measurement names.
const (
	MeasurementState    = "relay_state"
	MeasurementDelivery = "relay_delivery"
	MeasurementInbound  = "relay_inbound"
)

// PointWriter accepts points for batched writing. *Client satisfies it.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Telemetry is a relay.Observer that writes one point per observation.
// WritePoint only buffers, so observer calls never block on the network.
type Telemetry struct {
	w   PointWriter
	now func() time.Time
}

// NewTelemetry returns a telemetry observer writing through w.
func NewTelemetry(w PointWriter) *Telemetry {
	return &Telemetry{w: w, now: time.Now}
}

// StateChanged records a connection state transition.
func (t *Telemetry) StateChanged(tenantID string, state relay.ConnectionState) {
	t.w.WritePoint(write.NewPoint(
		MeasurementState,
		map[string]string{"tenant_id": tenantID},
		map[string]interface{}{
			"state":      state.String(),
			"state_code": int64(state),
		},
		t.now(),
	))
}

// Delivered records the outcome of one outbound domain event.
func (t *Telemetry) Delivered(tenantID string, dataType relay.DataType, outcome relay.Outcome) {
	t.w.WritePoint(write.NewPoint(
		MeasurementDelivery,
		map[string]string{
			"tenant_id": tenantID,
			"data_type": string(dataType),
			"outcome":   string(outcome),
		},
		map[string]interface{}{"count": int64(1)},
		t.now(),
	))
}

// Received records an inbound hub event.
func (t *Telemetry) Received(tenantID string, ev relay.Inbound) {
	if ev == nil {
		return
	}
	t.w.WritePoint(write.NewPoint(
		MeasurementInbound,
		map[string]string{
			"tenant_id": tenantID,
			"event":     ev.EventName(),
		},
		map[string]interface{}{"count": int64(1)},
		t.now(),
	))
}

var _ relay.Observer = (*Telemetry)(nil)
