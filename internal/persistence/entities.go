// Package persistence defines the stored entities and the repository
// interfaces the core components depend on. The postgres subpackage holds
// the concrete implementation.
package persistence

import "time"

// Token is a launch observed on the token feed. Tokens are created on first
// sighting and never hard-deleted; the score and metrics snapshot are
// refreshed on demand.
type Token struct {
	Address      string       `db:"address" json:"address"`
	Ticker       string       `db:"ticker" json:"ticker"`
	Name         string       `db:"name" json:"name"`
	Deployer     string       `db:"deployer" json:"deployer"`
	LaunchedAt   time.Time    `db:"launched_at" json:"launchedAt"`
	InitialPrice float64      `db:"initial_price" json:"initialPrice"`
	DeployerInfo DeployerSnap `db:"deployer_info" json:"deployerInfo"`
	Metrics      TokenMetrics `db:"metrics" json:"metrics"`
	Score        float64      `db:"score" json:"score"`
	Verified     bool         `db:"verified" json:"verified"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

// DeployerSnap is the deployer reputation snapshot embedded in a token at
// scan time.
type DeployerSnap struct {
	Whitelisted   bool    `json:"whitelisted"`
	Reputation    float64 `json:"reputation"`
	SuccessRate   float64 `json:"successRate"`
	TotalLaunches int     `json:"totalLaunches"`
	TotalValueSOL float64 `json:"totalValueSol"`
}

// TokenMetrics is the market snapshot captured for a token.
type TokenMetrics struct {
	MarketCap        float64   `json:"marketCap"`
	LiquiditySOL     float64   `json:"liquiditySol"`
	LiquidityLocked  bool      `json:"liquidityLocked"`
	Holders          int       `json:"holders"`
	TopHolderShare   float64   `json:"topHolderShare"`
	AllTimeHighPrice float64   `json:"allTimeHighPrice"`
	ObservedAt       time.Time `json:"observedAt"`
}

// DeployerProfile aggregates everything observed about a deployer wallet.
// Profiles are created lazily on first sighting; whitelisted profiles mark
// known experienced developers.
type DeployerProfile struct {
	Address            string    `db:"address" json:"address"`
	Reputation         float64   `db:"reputation" json:"reputation"`
	SuccessRate        float64   `db:"success_rate" json:"successRate"`
	TotalLaunches      int       `db:"total_launches" json:"totalLaunches"`
	SuccessfulLaunches int       `db:"successful_launches" json:"successfulLaunches"`
	TotalValueSOL      float64   `db:"total_value_sol" json:"totalValueSol"`
	Whitelisted        bool      `db:"whitelisted" json:"whitelisted"`
	LastActivity       time.Time `db:"last_activity" json:"lastActivity"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
}

// Alert condition values.
const (
	CondAbove  = "above"
	CondBelow  = "below"
	CondEquals = "equals"
)

// Alert is a one-shot user price alert. An alert leaves the active state
// exactly once, either by triggering or by expiry.
type Alert struct {
	ID            string     `db:"id" json:"id"`
	UserID        string     `db:"user_id" json:"userId"`
	TokenAddress  string     `db:"token_address" json:"tokenAddress"`
	PriceTarget   float64    `db:"price_target" json:"priceTarget"`
	Condition     string     `db:"condition" json:"condition"`
	Active        bool       `db:"active" json:"active"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	TriggeredAt   *time.Time `db:"triggered_at" json:"triggeredAt,omitempty"`
	TriggerPrice  *float64   `db:"trigger_price" json:"triggerPrice,omitempty"`
	Notifications int        `db:"notifications" json:"notifications"`
}

// Holding is a single portfolio position.
type Holding struct {
	TokenAddress string    `json:"tokenAddress"`
	Amount       float64   `json:"amount"`
	BuyPrice     float64   `json:"buyPrice"`
	BuyDate      time.Time `json:"buyDate"`
	Tags         []string  `json:"tags,omitempty"`
}

// Performance is the derived valuation block of a portfolio. It is always
// replaced wholesale, never patched field by field.
type Performance struct {
	TotalValue     float64 `json:"totalValue"`
	TotalPnL       float64 `json:"totalPnl"`
	DailyPnL       float64 `json:"dailyPnl"`
	BestPerformer  string  `json:"bestPerformer"`
	WorstPerformer string  `json:"worstPerformer"`
}

// Risk is the derived risk block of a portfolio. Defaults (beta 1, Sharpe 0)
// are legitimate outcomes when history is empty.
type Risk struct {
	PortfolioBeta        float64 `json:"portfolioBeta"`
	SharpeRatio          float64 `json:"sharpeRatio"`
	DiversificationScore float64 `json:"diversificationScore"`
	ValueAtRisk          float64 `json:"valueAtRisk"`
}

// Portfolio is a user's holdings plus the derived performance and risk
// blocks.
type Portfolio struct {
	UserID      string      `db:"user_id" json:"userId"`
	Holdings    []Holding   `db:"holdings" json:"holdings"`
	Performance Performance `db:"performance" json:"performance"`
	Risk        Risk        `db:"risk" json:"risk"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updatedAt"`
}

// TrackedWallet is a wallet a user follows, enriched by the periodic wallet
// analysis sweep.
type TrackedWallet struct {
	UserID           string     `db:"user_id" json:"userId"`
	Address          string     `db:"address" json:"address"`
	LastTradeAt      *time.Time `db:"last_trade_at" json:"lastTradeAt,omitempty"`
	RealizedPnLSOL   float64    `db:"realized_pnl_sol" json:"realizedPnlSol"`
	TotalTrades      int        `db:"total_trades" json:"totalTrades"`
	SuccessfulTrades int        `db:"successful_trades" json:"successfulTrades"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
}
