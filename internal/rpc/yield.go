package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xchpool-tools/xchpool-stats/internal/types"
)

// graphQLRequest is the body of a GraphQL POST
type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// yieldResponse is the GraphQL answer holding yield history, newest first
type yieldResponse struct {
	Data *struct {
		History []yieldEntry `json:"history"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type yieldEntry struct {
	Date      string       `json:"date"`
	XCHPerTiB *json.Number `json:"xchPerTib"`
	Amount    *json.Number `json:"amount"`
}

// Accepted date layouts of yield history entries
var yieldDateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

// FetchYieldReference returns the most recent historical yield per TiB
func (f *Fetcher) FetchYieldReference(ctx context.Context) (*types.YieldReference, error) {
	var resp yieldResponse
	req := graphQLRequest{Query: f.endpoints.YieldQuery}
	if err := f.client.PostJSON(ctx, SourceYield, f.endpoints.Yield, req, &resp); err != nil {
		return nil, err
	}
	return resp.toYieldReference()
}

func (r *yieldResponse) toYieldReference() (*types.YieldReference, error) {
	if len(r.Errors) > 0 {
		msgs := make([]string, len(r.Errors))
		for i, e := range r.Errors {
			msgs[i] = e.Message
		}
		return nil, &FetchError{Source: SourceYield, Err: errors.New(strings.Join(msgs, "; "))}
	}

	if r.Data == nil {
		return nil, &ParseError{Source: SourceYield, Field: "data"}
	}
	if len(r.Data.History) == 0 {
		return nil, &ParseError{Source: SourceYield, Field: "history", Err: errors.New("no entries")}
	}

	latest := r.Data.History[0]
	yield, err := requireFloat(SourceYield, "history[0].xchPerTib", latest.XCHPerTiB)
	if err != nil {
		return nil, err
	}

	var amount float64
	if latest.Amount != nil {
		if amount, err = requireFloat(SourceYield, "history[0].amount", latest.Amount); err != nil {
			return nil, err
		}
	}

	date, err := parseYieldDate(latest.Date)
	if err != nil {
		return nil, &ParseError{Source: SourceYield, Field: "history[0].date", Err: err}
	}

	return &types.YieldReference{
		Date:         date,
		YieldPerUnit: yield,
		Amount:       amount,
	}, nil
}

func parseYieldDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range yieldDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
