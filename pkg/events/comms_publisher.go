package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/backup-assistant/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// Headers carried by every published event. The invocation id is also set as the
// message id.
const (
	HeaderState     = "Agent-State"
	HeaderOperation = "Agent-Operation"
)

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// GlobalSubject overrides the global completion subject (ACTION_EVENT_SUBJECT).
	GlobalSubject string
}

// CommsPublisher publishes action-completed events to COMMS subjects.
type CommsPublisher struct {
	nc            *comms.Conn
	globalSubject string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	globalSubject := commsutil.SubjectActionCompleted
	if opts != nil && opts.GlobalSubject != "" {
		globalSubject = opts.GlobalSubject
	}
	return &CommsPublisher{nc: nc, globalSubject: globalSubject}
}

// PublishCompleted publishes the event to the per-operation subject and then to the
// global subject. An event is sent once when both subjects are the same.
func (p *CommsPublisher) PublishCompleted(ctx context.Context, event *ActionCompletedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	subjects := []string{commsutil.BuildCompletedSubject(event.Operation)}
	if p.globalSubject != subjects[0] {
		subjects = append(subjects, p.globalSubject)
	}
	for _, subject := range subjects {
		msg := &comms.Msg{Subject: subject, Header: eventHeader(event), Data: data}
		if err := p.nc.PublishMsg(msg); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
			return err
		}
	}

	slog.Debug(fmt.Sprintf("%s - Published completion of %s (%s)", commsPublisherLogPrefix, event.Operation, event.State))
	return nil
}

func eventHeader(event *ActionCompletedEvent) comms.Header {
	h := comms.Header{}
	h.Set(HeaderState, event.State)
	h.Set(HeaderOperation, event.Operation)
	if event.InvocationID != "" {
		h.Set(comms.MsgIdHdr, event.InvocationID)
	}
	return h
}
