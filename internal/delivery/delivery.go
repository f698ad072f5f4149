// Package delivery reports door events to the remote ingest endpoint and
// tracks whether the controller is online or buffering offline.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sweeney/door-sentinel/internal/logic"
)

// Mode is the connectivity mode of the controller.
type Mode int

const (
	Online Mode = iota
	Offline
)

func (m Mode) String() string {
	if m == Offline {
		return "offline"
	}
	return "online"
}

// ErrUnreachable means no network path to the ingest endpoint: the link is
// down, the request could not be sent, or it timed out.
var ErrUnreachable = errors.New("ingest endpoint unreachable")

// RejectedError means the endpoint answered with a status other than 200.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("ingest rejected: status %d: %s", e.StatusCode, e.Body)
}

// Link reports whether the network transport is connected.
type Link interface {
	Up() bool
}

// LinkFunc adapts a function to Link.
type LinkFunc func() bool

// Up calls f.
func (f LinkFunc) Up() bool { return f() }

// AlwaysUp is a Link that never reports the network as down.
var AlwaysUp Link = LinkFunc(func() bool { return true })

// Config configures a Channel.
type Config struct {
	URL     string
	DoorID  string
	Timeout time.Duration // bounds every attempt; a timeout counts as unreachable
}

// SinglePayload is the body of a direct open/close report.
type SinglePayload struct {
	Open        bool   `json:"open"`
	OfflineMode bool   `json:"offline_mode"`
	Door        string `json:"door"`
}

// BulkPayload is the body of an offline buffer flush.
type BulkPayload struct {
	OfflineOpenings []string `json:"offline_openings"`
	OfflineMode     bool     `json:"offline_mode"`
	Door            string   `json:"door"`
}

// Channel sends reports to the ingest endpoint. Any failed attempt demotes
// the channel to Offline; only MarkOnline promotes it again.
// Not safe for concurrent use.
type Channel struct {
	cfg    Config
	link   Link
	client *http.Client
	mode   Mode
}

// New creates an Online channel. A nil link is treated as always up and a
// nil client as http.DefaultClient.
func New(cfg Config, link Link, client *http.Client) *Channel {
	if link == nil {
		link = AlwaysUp
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Channel{
		cfg:    cfg,
		link:   link,
		client: client,
	}
}

// Mode returns the current connectivity mode.
func (c *Channel) Mode() Mode {
	return c.mode
}

// MarkOnline returns the channel to Online. Callers do this after a bulk
// flush succeeded and the offline buffer was cleared.
func (c *Channel) MarkOnline() {
	c.mode = Online
}

// SendSingle reports a single open or close transition.
func (c *Channel) SendSingle(ctx context.Context, open bool) error {
	return c.post(ctx, SinglePayload{
		Open:        open,
		OfflineMode: false,
		Door:        c.cfg.DoorID,
	})
}

// SendBulk reports every buffered opening in one request.
func (c *Channel) SendBulk(ctx context.Context, events []logic.PendingEvent) error {
	openings := make([]string, 0, len(events))
	for _, ev := range events {
		openings = append(openings, ev.Timestamp)
	}
	return c.post(ctx, BulkPayload{
		OfflineOpenings: openings,
		OfflineMode:     true,
		Door:            c.cfg.DoorID,
	})
}

func (c *Channel) post(ctx context.Context, payload any) error {
	err := c.attempt(ctx, payload)
	if err != nil {
		c.mode = Offline
	}
	return err
}

func (c *Channel) attempt(ctx context.Context, payload any) error {
	if !c.link.Up() {
		return fmt.Errorf("network link down: %w", ErrUnreachable)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode != http.StatusOK {
		return &RejectedError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
