// Package notify tells buyers and listeners that an order's tickets are
// ready.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	pubnub "github.com/pubnub/go/v7"

	"github.com/Michaelasereo/ti3ckets.com-sub000/internal/domain"
)

// Log records paid orders in the service log. It is the default when no
// realtime channel is configured.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) OrderPaid(_ context.Context, order domain.Order, tickets []domain.Ticket) error {
	l.logger.Info("order paid",
		"order_id", order.ID,
		"buyer_email", order.Buyer.Email,
		"tickets", len(tickets),
		"total", order.TotalAmount.StringFixed(2),
	)
	return nil
}

// Publisher sends one message to a realtime channel.
type Publisher interface {
	Publish(channel string, message any) error
}

type pubnubPublisher struct {
	pn *pubnub.PubNub
}

func (p pubnubPublisher) Publish(channel string, message any) error {
	_, status, err := p.pn.Publish().Channel(channel).Message(message).Execute()
	if err != nil {
		return err
	}
	if status.Error != nil {
		return status.Error
	}
	return nil
}

type PubNubConfig struct {
	PublishKey    string
	SubscribeKey  string
	UserID        string
	ChannelPrefix string
}

// Realtime publishes an "order_paid" message on the order's channel so an
// open checkout page can stop polling.
type Realtime struct {
	pub    Publisher
	prefix string
}

func NewPubNub(cfg PubNubConfig) *Realtime {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	return NewRealtime(pubnubPublisher{pn: pubnub.NewPubNub(pnCfg)}, cfg.ChannelPrefix)
}

func NewRealtime(pub Publisher, prefix string) *Realtime {
	if prefix == "" {
		prefix = "order-"
	}
	return &Realtime{pub: pub, prefix: prefix}
}

type ticketMessage struct {
	TicketNumber string `json:"ticket_number"`
	ArtifactURL  string `json:"artifact_url,omitempty"`
}

func (r *Realtime) OrderPaid(_ context.Context, order domain.Order, tickets []domain.Ticket) error {
	msgs := make([]ticketMessage, 0, len(tickets))
	for _, t := range tickets {
		msgs = append(msgs, ticketMessage{TicketNumber: t.TicketNumber, ArtifactURL: t.ArtifactURL})
	}
	channel := r.prefix + order.ID
	err := r.pub.Publish(channel, map[string]any{
		"type":     "order_paid",
		"order_id": order.ID,
		"status":   string(order.Status),
		"tickets":  msgs,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

type Notifier interface {
	OrderPaid(ctx context.Context, order domain.Order, tickets []domain.Ticket) error
}

// Multi fans out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) OrderPaid(ctx context.Context, order domain.Order, tickets []domain.Ticket) error {
	var errs []error
	for _, n := range m {
		if err := n.OrderPaid(ctx, order, tickets); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
