package hubauth

import "github.com/nerrad567/dealerdesk-core/internal/cardroom"

// Session is the identity the relay runs under. An offline session carries
// no bearer token.
type Session struct {
	UserID      string
	BearerToken string
	TenantID    string
	StoreName   string
	StoreHost   string
	Tenants     []cardroom.Tenant
	IsOffline   bool
}

// Tenant finds a tenant by the hub's numeric store id.
func (s *Session) Tenant(storeID int64) (cardroom.Tenant, bool) {
	for _, t := range s.Tenants {
		if t.ID == storeID {
			return t, true
		}
	}
	return cardroom.Tenant{}, false
}

// Select makes t the active tenant.
func (s *Session) Select(t cardroom.Tenant) {
	s.TenantID = t.TenantID
	s.StoreName = t.Name
	s.StoreHost = t.Host
}

// ChannelAuth is the hub's signature for one socket and channel.
type ChannelAuth struct {
	Auth        string `json:"auth"`
	ChannelData string `json:"channel_data,omitempty"`
}
