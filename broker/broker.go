// Package broker defines the contract between the monitor and a brokerage
// feed adapter.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/portmon/market"
	"github.com/shopspring/decimal"
)

var (
	// ErrConnectivity covers transient feed failures: refused connections,
	// timeouts, dropped sessions. Callers may retry.
	ErrConnectivity = errors.New("feed connectivity error")
	// ErrAuth is an unrecoverable rejection of credentials or client id.
	ErrAuth = errors.New("feed authentication error")
	// ErrNotConnected is returned by calls made before Connect succeeds.
	ErrNotConnected = errors.New("feed not connected")
	// ErrOrderRejected is a broker refusal of a well-formed order.
	ErrOrderRejected = errors.New("order rejected by broker")
)

// Endpoint locates a brokerage gateway.
type Endpoint struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	ClientID int    `json:"client_id" yaml:"client_id"`
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d#%d", e.Host, e.Port, e.ClientID)
}

// Feed is implemented by brokerage adapters. Every blocking call takes a
// context and must return promptly once it is done.
type Feed interface {
	Connect(ctx context.Context, ep Endpoint) error
	Disconnect() error
	Heartbeat(ctx context.Context) error
	PullSnapshot(ctx context.Context) (market.AccountSnapshot, []market.Position, error)
	PullPrices(ctx context.Context, instrument string, window int) (*market.PriceSeries, error)
	SubmitOrder(ctx context.Context, o Order) (OrderResult, error)
	OpenOrders(ctx context.Context) ([]OpenOrder, error)
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const (
	Market OrderType = "MKT"
	Limit  OrderType = "LMT"
)

// Order is a request to trade. ClientID is unique per order and lets the
// broker drop duplicates.
type Order struct {
	ClientID   string          `json:"client_id"`
	Instrument string          `json:"instrument"`
	Side       Side            `json:"side"`
	Type       OrderType       `json:"type"`
	Quantity   decimal.Decimal `json:"quantity"`
	LimitPrice decimal.Decimal `json:"limit_price,omitempty"`
	RefPrice   float64         `json:"ref_price"`
	Strategy   string          `json:"strategy,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Notional is quantity times the reference price.
func (o Order) Notional() decimal.Decimal {
	return o.Quantity.Mul(decimal.NewFromFloat(o.RefPrice))
}

type OrderResult struct {
	OrderID     string          `json:"order_id"`
	ClientID    string          `json:"client_id"`
	Status      string          `json:"status"`
	Filled      decimal.Decimal `json:"filled"`
	AvgPrice    float64         `json:"avg_price"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

// OpenOrder is a working order reported by the broker.
type OpenOrder struct {
	OrderID    string          `json:"order_id"`
	Instrument string          `json:"instrument"`
	Side       Side            `json:"side"`
	Type       OrderType       `json:"type"`
	Quantity   decimal.Decimal `json:"quantity"`
	Filled     decimal.Decimal `json:"filled"`
	LimitPrice decimal.Decimal `json:"limit_price"`
	Status     string          `json:"status"`
	PlacedAt   time.Time       `json:"placed_at"`
}

// Remaining is the unfilled quantity.
func (o OpenOrder) Remaining() decimal.Decimal {
	return o.Quantity.Sub(o.Filled)
}

// IsRetryable reports whether err is a transient feed failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConnectivity) || errors.Is(err, context.DeadlineExceeded)
}

// IsFatal reports whether err should stop the monitor.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuth)
}
