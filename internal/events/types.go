// internal/events/types.go
package events

import (
	"context"
	"time"
)

// EventType identifies a kind of engine event.
type EventType string

const (
	// Signal events
	CandidateDetected EventType = "candidate.detected"

	// Trade lifecycle events
	PositionOpened EventType = "position.opened"
	TargetReached  EventType = "position.target_reached"
	PartialExit    EventType = "position.partial_exit"
	PositionClosed EventType = "position.closed"
	TradeFailed    EventType = "trade.failed"
)

// Event is the interface all published events implement.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// Handler consumes events.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error { return f(ctx, event) }

// Subscription can be cancelled to stop receiving events.
type Subscription interface {
	Unsubscribe()
}

// BaseEvent carries the fields common to all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

// NewBase stamps a base event with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

// CandidateDetectedEvent is published when a signal source reports a new
// tradable token.
type CandidateDetectedEvent struct {
	BaseEvent
	Symbol  string
	Address string
	Source  string
}

// PositionOpenedEvent is published after a confirmed buy.
type PositionOpenedEvent struct {
	BaseEvent
	Symbol     string
	Address    string
	HeldAmount float64
	EntryPrice float64
	SpentSOL   float64
}

// TargetReachedEvent is published when a position hits its profit target.
type TargetReachedEvent struct {
	BaseEvent
	Symbol        string
	ProfitPercent float64
}

// PartialExitEvent is published after a confirmed partial sale.
type PartialExitEvent struct {
	BaseEvent
	Symbol     string
	SoldAmount float64
	Remaining  float64
}

// PositionClosedEvent is published when a position's holding reaches zero
// and the position leaves the active set.
type PositionClosedEvent struct {
	BaseEvent
	Symbol string
}

// TradeFailedEvent is published when a buy or sell attempt aborts. The
// position, if any, is left untouched.
type TradeFailedEvent struct {
	BaseEvent
	Symbol    string
	Operation string // "buy" or "sell"
	Reason    string
}
