// Package estimate derives expected-vs-actual block production and payout
// estimates for a pool member from fetched pool, member, price and yield data.
package estimate

import (
	"math"
	"time"

	"github.com/xchpool-tools/xchpool-stats/internal/types"
	"github.com/xchpool-tools/xchpool-stats/internal/util"
)

// Chain and pool defaults
const (
	DefaultPeriodLength = 6 * time.Hour
	DefaultBlocksPerDay = 4608
	DefaultBlockReward  = 1.75 // XCH paid to the farmer's pool per block
	DefaultDays         = 7
)

// Params are the fixed parameters of an estimate
type Params struct {
	PeriodLength   time.Duration
	BlocksPerDay   float64
	BlockReward    float64
	ReferenceSpace float64 // bytes, operator declared capacity
	Days           int     // days of recent earnings to summarize
}

// DefaultParams returns the XCHPool defaults with no reference space
func DefaultParams() Params {
	return Params{
		PeriodLength: DefaultPeriodLength,
		BlocksPerDay: DefaultBlocksPerDay,
		BlockReward:  DefaultBlockReward,
		Days:         DefaultDays,
	}
}

// Inputs are the fetched datasets plus the evaluation time
type Inputs struct {
	Pool   types.PoolStats
	Member types.MemberStats
	Price  types.MarketPrice
	Yield  types.YieldReference
	Now    time.Time
}

// Report holds every derived figure of one invocation
type Report struct {
	Timestamp    time.Time     `json:"timestamp"`
	PeriodStart  time.Time     `json:"period_start"`
	PeriodLength time.Duration `json:"period_length"`
	Elapsed      time.Duration `json:"elapsed"`

	TotalSpace            float64 `json:"total_space"`
	PoolSpace             float64 `json:"pool_space"`
	ExpectedBlocksPeriod  float64 `json:"expected_blocks_period"`
	ExpectedBlocksElapsed float64 `json:"expected_blocks_elapsed"`
	ActualBlocks          int64   `json:"actual_blocks"`
	AheadBehind           float64 `json:"ahead_behind"`

	Points         int64   `json:"points"`
	MemberNetspace float64 `json:"member_netspace"`
	PoolShare      float64 `json:"poolshare"`

	Price       float64 `json:"price"`
	PriceSource string  `json:"price_source"`

	PayoutToDate       float64 `json:"payout_to_date"`
	ProjectedRemaining float64 `json:"projected_remaining"`
	ProjectedTotal     float64 `json:"projected_total"`

	ReferenceSpace          float64   `json:"reference_space"`
	YieldPerUnit            float64   `json:"yield_per_unit"`
	YieldDate               time.Time `json:"yield_date"`
	ExpectedPayoutPerPeriod float64   `json:"expected_payout_per_period"`

	Profitability      float64 `json:"profitability"`
	ProfitabilityKnown bool    `json:"profitability_known"`

	Earnings EarningsSummary `json:"earnings"`
}

// EarningsSummary compares recent earnings against the reference expectation
type EarningsSummary struct {
	Days     int             `json:"days"`
	Periods  int             `json:"periods"`  // requested number of records
	Count    int             `json:"count"`    // records actually summed
	Total    float64         `json:"total"`    // XCH
	Expected float64         `json:"expected"` // XCH
	Percent  float64         `json:"percent"`
	Compared bool            `json:"compared"`
	Records  []EarningResult `json:"records"`
}

// EarningResult is one earnings record with its share of the expectation
type EarningResult struct {
	types.Earning
	XCH     float64 `json:"xch"`
	Percent float64 `json:"percent"`
}

// Ahead reports whether the pool found at least as many blocks as expected so far
func (r *Report) Ahead() bool {
	return r.AheadBehind >= 0
}

// PayoutToDateFiat returns the payout to date in the price currency
func (r *Report) PayoutToDateFiat() float64 {
	return r.PayoutToDate * r.Price
}

// ProjectedTotalFiat returns the projected period payout in the price currency
func (r *Report) ProjectedTotalFiat() float64 {
	return r.ProjectedTotal * r.Price
}

// AboveReference reports whether profitability meets the historical yield
func (r *Report) AboveReference() bool {
	return r.ProfitabilityKnown && r.Profitability >= r.YieldPerUnit
}

// Compute derives a report from in using p
func Compute(in Inputs, p Params) (*Report, error) {
	if p.PeriodLength <= 0 {
		return nil, &InputError{Field: "period_length", Reason: "must be positive"}
	}
	if in.Pool.TotalSpace <= 0 || math.IsNaN(in.Pool.TotalSpace) {
		return nil, &InputError{Field: "total_space", Reason: "must be positive"}
	}

	now := in.Now.UTC()
	start := PeriodStart(now, p.PeriodLength)
	elapsed := now.Sub(start)
	progress := float64(elapsed) / float64(p.PeriodLength)

	r := &Report{
		Timestamp:      now,
		PeriodStart:    start,
		PeriodLength:   p.PeriodLength,
		Elapsed:        elapsed,
		TotalSpace:     in.Pool.TotalSpace,
		PoolSpace:      in.Pool.PoolSpace,
		ActualBlocks:   in.Pool.BlocksFound,
		Points:         in.Member.Points,
		MemberNetspace: in.Member.Netspace,
		PoolShare:      in.Member.PoolShare,
		Price:          in.Price.Price,
		PriceSource:    in.Price.Source,
		ReferenceSpace: p.ReferenceSpace,
		YieldPerUnit:   in.Yield.YieldPerUnit,
		YieldDate:      in.Yield.Date,
	}

	r.ExpectedBlocksPeriod = ExpectedBlocks(p.BlocksPerDay, p.PeriodLength, in.Pool.PoolSpace, in.Pool.TotalSpace)
	r.ExpectedBlocksElapsed = r.ExpectedBlocksPeriod * progress
	r.AheadBehind = float64(in.Pool.BlocksFound) - r.ExpectedBlocksElapsed

	r.PayoutToDate = in.Member.PoolShare * float64(in.Pool.BlocksFound) * p.BlockReward
	r.ProjectedRemaining = (1 - progress) * r.ExpectedBlocksPeriod * p.BlockReward * in.Member.PoolShare
	r.ProjectedTotal = r.PayoutToDate + r.ProjectedRemaining

	r.ExpectedPayoutPerPeriod = util.BytesToTiB(p.ReferenceSpace) * in.Yield.YieldPerUnit * DayFraction(p.PeriodLength)

	if in.Member.Netspace > 0 {
		r.Profitability = PeriodsPerDay(p.PeriodLength) * util.TiB * r.ProjectedTotal / in.Member.Netspace
		r.ProfitabilityKnown = true
	}

	r.Earnings = SummarizeEarnings(in.Member.Earnings, p.Days, p.PeriodLength, r.ExpectedPayoutPerPeriod)
	return r, nil
}

// ExpectedBlocks returns the pool's proportional share of the network's
// block production over one period of the given length.
func ExpectedBlocks(blocksPerDay float64, length time.Duration, poolSpace, totalSpace float64) float64 {
	return blocksPerDay * DayFraction(length) * poolSpace / totalSpace
}

// SummarizeEarnings sums the most recent days worth of earnings records and
// compares the sum with expectedPerPeriod over the whole window. Records are
// taken in the given order, which is most recent first.
func SummarizeEarnings(earnings []types.Earning, days int, length time.Duration, expectedPerPeriod float64) EarningsSummary {
	s := EarningsSummary{Days: days}
	if days <= 0 {
		return s
	}

	s.Periods = int(float64(days) * PeriodsPerDay(length))
	if s.Periods < 1 {
		s.Periods = 1
	}

	s.Count = s.Periods
	if len(earnings) < s.Count {
		s.Count = len(earnings)
	}

	s.Compared = expectedPerPeriod > 0
	s.Records = make([]EarningResult, 0, s.Count)
	for _, e := range earnings[:s.Count] {
		xch := util.MojoToXCH(e.Amount)
		s.Total += xch

		res := EarningResult{Earning: e, XCH: xch}
		if s.Compared {
			res.Percent = xch / expectedPerPeriod * 100
		}
		s.Records = append(s.Records, res)
	}

	s.Expected = expectedPerPeriod * float64(s.Periods)
	if s.Compared {
		s.Percent = s.Total / s.Expected * 100
	}
	return s
}
