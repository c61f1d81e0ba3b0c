package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/xchpool-tools/xchpool-stats/internal/types"
)

// Source names used in errors and logs
const (
	SourcePoolStats = "poolstats"
	SourceMember    = "member"
	SourceYield     = "yield"
	SourcePrice     = "price"
)

// poolStatsResponse is the raw /v1/poolstats body
type poolStatsResponse struct {
	BlockchainTotalSpace  *json.Number `json:"blockchainTotalSpace"`
	PoolCapacityBytes     *json.Number `json:"poolCapacityBytes"`
	BlocksFoundSofarToday *json.Number `json:"blocksFoundSofarToday"`
}

// memberResponse is the raw /v1/members/get body
type memberResponse struct {
	CurrentPoolShare *json.Number      `json:"currentPoolShare"`
	Points           *json.Number      `json:"points"`
	Netspace         *json.Number      `json:"netspace"`
	Earnings         []earningResponse `json:"earnings"`
}

type earningResponse struct {
	Singleton     string       `json:"singleton"`
	LauncherID    string       `json:"launcherId"`
	Amount        *json.Number `json:"amount"`
	State         string       `json:"state"`
	TransactionID string       `json:"transactionId"`
}

// FetchPoolStats returns pool-wide statistics for the current period
func (f *Fetcher) FetchPoolStats(ctx context.Context) (*types.PoolStats, error) {
	var resp poolStatsResponse
	if err := f.client.GetJSON(ctx, SourcePoolStats, f.endpoints.PoolStats, &resp); err != nil {
		return nil, err
	}
	return resp.toPoolStats()
}

func (r *poolStatsResponse) toPoolStats() (*types.PoolStats, error) {
	total, err := requireFloat(SourcePoolStats, "blockchainTotalSpace", r.BlockchainTotalSpace)
	if err != nil {
		return nil, err
	}
	pool, err := requireFloat(SourcePoolStats, "poolCapacityBytes", r.PoolCapacityBytes)
	if err != nil {
		return nil, err
	}
	blocks, err := requireInt(SourcePoolStats, "blocksFoundSofarToday", r.BlocksFoundSofarToday)
	if err != nil {
		return nil, err
	}

	return &types.PoolStats{
		TotalSpace:  total,
		PoolSpace:   pool,
		BlocksFound: blocks,
	}, nil
}

// FetchMemberStats returns the statistics of the member identified by launcherID
func (f *Fetcher) FetchMemberStats(ctx context.Context, launcherID string) (*types.MemberStats, error) {
	endpoint := memberURL(f.endpoints.Member, launcherID)

	var resp memberResponse
	if err := f.client.GetJSON(ctx, SourceMember, endpoint, &resp); err != nil {
		return nil, err
	}
	return resp.toMemberStats()
}

// memberURL appends the search parameter, keeping any query already present
func memberURL(base, launcherID string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "search=" + url.QueryEscape(launcherID)
}

func (r *memberResponse) toMemberStats() (*types.MemberStats, error) {
	share, err := requireFloat(SourceMember, "currentPoolShare", r.CurrentPoolShare)
	if err != nil {
		return nil, err
	}
	points, err := requireInt(SourceMember, "points", r.Points)
	if err != nil {
		return nil, err
	}
	netspace, err := requireFloat(SourceMember, "netspace", r.Netspace)
	if err != nil {
		return nil, err
	}

	earnings := make([]types.Earning, 0, len(r.Earnings))
	for i, e := range r.Earnings {
		earning, err := e.toEarning(i)
		if err != nil {
			return nil, err
		}
		earnings = append(earnings, earning)
	}

	return &types.MemberStats{
		PoolShare: share,
		Points:    points,
		Netspace:  netspace,
		Earnings:  earnings,
	}, nil
}

func (e *earningResponse) toEarning(i int) (types.Earning, error) {
	amount, err := requireFloat(SourceMember, fmt.Sprintf("earnings[%d].amount", i), e.Amount)
	if err != nil {
		return types.Earning{}, err
	}

	var state types.EarningState
	switch strings.ToLower(e.State) {
	case "paid":
		state = types.EarningPaid
	case "unpaid", "pending":
		state = types.EarningUnpaid
	default:
		return types.Earning{}, &ParseError{
			Source: SourceMember,
			Field:  fmt.Sprintf("earnings[%d].state", i),
			Err:    fmt.Errorf("unknown payment state %q", e.State),
		}
	}

	singleton := e.Singleton
	if singleton == "" {
		singleton = e.LauncherID
	}

	return types.Earning{
		Singleton:     singleton,
		Amount:        amount,
		State:         state,
		TransactionID: e.TransactionID,
	}, nil
}
