// Package types holds the records fetched from the pool, price and yield APIs.
package types

import "time"

// PoolStats represents pool-wide statistics for the current accounting period
type PoolStats struct {
	TotalSpace  float64 `json:"total_space"`  // bytes, whole blockchain
	PoolSpace   float64 `json:"pool_space"`   // bytes, pool capacity
	BlocksFound int64   `json:"blocks_found"` // blocks found so far this period
}

// EarningState is the payment state of an earnings record
type EarningState string

const (
	EarningPaid   EarningState = "paid"
	EarningUnpaid EarningState = "unpaid"
)

// Earning is one past payout record of a member
type Earning struct {
	Singleton     string       `json:"singleton"`
	Amount        float64      `json:"amount"` // mojo
	State         EarningState `json:"state"`
	TransactionID string       `json:"transaction_id,omitempty"`
}

// MemberStats represents a member's share of the pool
type MemberStats struct {
	PoolShare float64   `json:"poolshare"` // 0..1
	Points    int64     `json:"points"`
	Netspace  float64   `json:"netspace"` // bytes, estimated by the pool
	Earnings  []Earning `json:"earnings"` // most recent first
}

// MarketPrice is the spot price of XCH
type MarketPrice struct {
	Price  float64 `json:"price"` // USD per XCH
	Source string  `json:"source"`
}

// YieldReference is the historical yield for the most recent dated period
type YieldReference struct {
	Date         time.Time `json:"date"`
	YieldPerUnit float64   `json:"yield_per_unit"` // XCH per TiB per day
	Amount       float64   `json:"amount"`
}
