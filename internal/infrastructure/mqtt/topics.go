package mqtt

import (
	"fmt"
	"strings"
)

// DefaultPrefix is the topic root used when none is configured.
const DefaultPrefix = "dealerdesk"

// Topics builds mirror topic names under Prefix.
//
//	topics := mqtt.Topics{Prefix: "dealerdesk"}
//	topics.RelayState("t-100") // "dealerdesk/t-100/relay/state"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// SystemStatus is the retained desk status topic, also used for the LWT.
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// RelayState is the retained connection state topic for a tenant.
func (t Topics) RelayState(tenantID string) string {
	return fmt.Sprintf("%s/%s/relay/state", t.prefix(), segment(tenantID))
}

// Event is the topic for an inbound hub event. Namespaced event names are
// reduced to their final segment: App\Events\ToAdminPanel\PurchaseEvent
// becomes PurchaseEvent.
func (t Topics) Event(tenantID, eventName string) string {
	if i := strings.LastIndexAny(eventName, `\/.`); i >= 0 {
		eventName = eventName[i+1:]
	}
	return fmt.Sprintf("%s/%s/events/%s", t.prefix(), segment(tenantID), segment(eventName))
}

// Delivery is the topic for outbound delivery outcomes of one dataType.
func (t Topics) Delivery(tenantID, dataType string) string {
	return fmt.Sprintf("%s/%s/delivery/%s", t.prefix(), segment(tenantID), segment(dataType))
}

// AllTenant matches every mirror topic for a tenant.
func (t Topics) AllTenant(tenantID string) string {
	return fmt.Sprintf("%s/%s/#", t.prefix(), segment(tenantID))
}

// segment makes s safe as a single topic level. Wildcards and separators
// are replaced, and an empty value becomes "_".
func segment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
