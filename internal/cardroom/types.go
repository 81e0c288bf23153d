package cardroom

import "encoding/json"

// Tenant is one store the authenticated operator may run. ID is the hub's
// numeric store id; TenantID names the tenant's private channel.
type Tenant struct {
	ID       int64  `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Host     string `json:"host"`
}

// Game is a tournament or cash game run on the floor.
type Game struct {
	ID            int64           `json:"id"`
	Title         string          `json:"title"`
	Status        string          `json:"game_status"`
	StartTime     Time            `json:"game_start_time"`
	StopTime      Time            `json:"game_stop_time"`
	EndTime       Time            `json:"game_end_time"`
	BuyInPrice    int64           `json:"buy_in_price"`
	ReBuyInPrice  int64           `json:"re_buy_in_price"`
	StartingChip  int64           `json:"starting_chip"`
	AddonCount    int             `json:"addon_count"`
	AddonPrice    int64           `json:"addon_price"`
	FinalPrize    int64           `json:"final_prize"`
	Players       []int64         `json:"game_in_player"`
	TimeTable     json.RawMessage `json:"time_table_data,omitempty"`
	PrizeSettings json.RawMessage `json:"prize_settings,omitempty"`
}

// Point is a 2D table position on the floor plan.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a table footprint on the floor plan.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Table is a physical table and the game seated at it, if any.
type Table struct {
	ID             int64  `json:"id"`
	GameID         *int64 `json:"game_id"`
	Title          string `json:"table_title"`
	CurrentPlayers int    `json:"current_player_count"`
	MaxPlayers     int    `json:"max_player_count"`
	Position       Point  `json:"position"`
	Size           Size   `json:"size"`
}

// Preset is a reusable game template.
type Preset struct {
	ID            int64           `json:"id"`
	Name          string          `json:"preset_name"`
	BuyInPrice    int64           `json:"buy_in_price"`
	ReBuyInPrice  int64           `json:"re_buy_in_price"`
	StartingChip  int64           `json:"starting_chip"`
	TimeTable     json.RawMessage `json:"time_table_data,omitempty"`
	PrizeSettings json.RawMessage `json:"prize_settings,omitempty"`
	RebuyCutOff   json.RawMessage `json:"rebuy_cut_off,omitempty"`
}

// Purchase is a buy-in, rebuy, add-on or item sale.
type Purchase struct {
	UUID          string `json:"uuid"`
	PurchaseType  string `json:"purchase_type"`
	PaymentType   string `json:"payment_type,omitempty"`
	GameID        *int64 `json:"game_id"`
	CustomerID    *int64 `json:"customer_id"`
	PurchasedAt   Time   `json:"purchased_at"`
	Item          string `json:"item"`
	PaymentStatus string `json:"payment_status"`
	Status        string `json:"status"`
	Price         int64  `json:"price"`
	UsedPoints    int64  `json:"used_points"`
}

// Customer is a registered player.
type Customer struct {
	UUID          string       `json:"uuid"`
	Name          string       `json:"name"`
	PhoneNumber   string       `json:"phone_number"`
	Email         string       `json:"regist_mail"`
	GameJoinCount int          `json:"game_join_count"`
	VisitCount    int          `json:"visit_count"`
	Point         int64        `json:"point"`
	TotalPoint    int64        `json:"total_point"`
	Remark        string       `json:"remark"`
	RegisteredAt  Time         `json:"register_at"`
	LastVisitAt   Time         `json:"last_visit_at"`
	PointHistory  []PointEntry `json:"point_history,omitempty"`
}

// PointEntry is one credit or debit on a customer's point balance.
type PointEntry struct {
	UUID            string `json:"uuid"`
	CustomerID      *int64 `json:"customer_id"`
	Reason          string `json:"reason"`
	Amount          int64  `json:"amount"`
	AvailableAmount int64  `json:"available_amount"`
	IsIncrease      bool   `json:"is_increase"`
	IsExpired       bool   `json:"is_expired"`
	ExpireAt        Time   `json:"expire_at"`
	CreatedAt       Time   `json:"created_at"`
}

// Awarding is a prize paid out at the end of a game.
type Awarding struct {
	ID         int64 `json:"id"`
	GameID     int64 `json:"game_id"`
	CustomerID int64 `json:"customer_id"`
	Rank       int   `json:"rank"`
	Prize      int64 `json:"prize_amount"`
	AwardedAt  Time  `json:"awarded_at"`
}

// PlayerExit records a player leaving a running game.
type PlayerExit struct {
	GameID     int64 `json:"game_id"`
	CustomerID int64 `json:"customer_id"`
	Seat       *int  `json:"seat,omitempty"`
	ExitedAt   Time  `json:"exited_at"`
}
