// Package notify defines the outbound notification contract used by the
// matching pipeline to contact top-ranked donors.
package notify

import (
	"context"

	"bloodlink/pkg/domain"
)

// Channel selects how a donor is contacted.
type Channel string

const (
	// ChannelPush delivers a mobile push notification.
	ChannelPush Channel = "push"
	// ChannelSMS delivers a text message.
	ChannelSMS Channel = "sms"
)

// Message is a single donor notification about an open blood request.
type Message struct {
	// Donor is the recipient of the notification.
	Donor domain.Donor
	// RequestID identifies the blood request the donor is being asked about.
	RequestID domain.RequestID
	// BloodType is the requested blood type.
	BloodType domain.BloodType
	// Urgency is the request urgency level.
	Urgency domain.Urgency
	// DistanceKm is how far the donor is from the request location.
	DistanceKm float64
}

// Notifier dispatches donor notifications. Implementations must honor
// context cancellation; the pipeline enforces a per-notification deadline
// through the context it passes in.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Func adapts a plain function to the Notifier interface.
type Func func(ctx context.Context, msg Message) error

func (f Func) Notify(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
