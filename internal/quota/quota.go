// Package quota gates the daily budget of external contact lookups.
package quota

import (
	"context"
	"fmt"
	"time"
)

// DefaultDailyLimit is the number of lookups allowed per UTC day.
const DefaultDailyLimit = 150

const dayLayout = "2006-01-02"

// Ledger stores one consumed-count per calendar day.
type Ledger interface {
	Count(ctx context.Context, day string) (int, error)
	// Add increments day's count by n, creating it if absent, and returns the new count.
	Add(ctx context.Context, day string, n int) (int, error)
}

type Usage struct {
	Day       string `json:"day"`
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
}

// Gate checks and records consumption against Limit. CanConsume and Consume
// are separate calls, so two concurrent callers can both pass the check.
type Gate struct {
	Ledger Ledger
	Limit  int
	Now    func() time.Time
}

func NewGate(l Ledger, limit int) *Gate {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Gate{Ledger: l, Limit: limit, Now: time.Now}
}

// Day returns the ledger key for today in UTC.
func (g *Gate) Day() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return now().UTC().Format(dayLayout)
}

func (g *Gate) Usage(ctx context.Context) (Usage, error) {
	day := g.Day()
	n, err := g.Ledger.Count(ctx, day)
	if err != nil {
		return Usage{}, fmt.Errorf("quota usage: %w", err)
	}
	return g.usage(day, n), nil
}

// CanConsume reports whether n more lookups fit under today's limit.
func (g *Gate) CanConsume(ctx context.Context, n int) (bool, Usage, error) {
	u, err := g.Usage(ctx)
	if err != nil {
		return false, u, err
	}
	return u.Count+n <= u.Limit, u, nil
}

func (g *Gate) Consume(ctx context.Context, n int) (Usage, error) {
	day := g.Day()
	total, err := g.Ledger.Add(ctx, day, n)
	if err != nil {
		return Usage{}, fmt.Errorf("quota consume: %w", err)
	}
	return g.usage(day, total), nil
}

func (g *Gate) usage(day string, n int) Usage {
	rem := g.Limit - n
	if rem < 0 {
		rem = 0
	}
	return Usage{Day: day, Count: n, Limit: g.Limit, Remaining: rem}
}
