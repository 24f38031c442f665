// Package notify delivers campaign notifications to whoever is listening.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"outreach-engine/internal/events"
)

type Notification struct {
	Type       string `json:"type"`
	CampaignID int64  `json:"campaign_id,omitempty"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	Link       string `json:"link,omitempty"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// CampaignLink builds the deep link for a campaign.
func CampaignLink(baseURL string, campaignID int64) string {
	return fmt.Sprintf("%s/campaigns/%d", strings.TrimRight(baseURL, "/"), campaignID)
}

// HubNotifier publishes notifications to SSE subscribers.
type HubNotifier struct {
	Hub *events.Hub
}

func (h HubNotifier) Notify(_ context.Context, n Notification) error {
	if h.Hub == nil {
		return nil
	}
	h.Hub.Publish(events.MakeEvent("", n.Type, 1, n))
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, x := range m {
		if x == nil {
			continue
		}
		if err := x.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}
