package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
	comms "github.com/nats-io/nats.go"
)

const publisherTestPrefix = "events:comms_publisher_integration_test"

// startTestServer starts an in-process NATS server for testing.
func startTestServer(t *testing.T, port int) (*comms.Conn, func()) {
	t.Helper()

	opts := &commsserver.Options{
		Host:   "127.0.0.1",
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	}

	ns, err := commsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("%s - failed to create server: %v", publisherTestPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatalf("%s - server failed to start", publisherTestPrefix)
	}

	nc, err := comms.Connect(ns.ClientURL(), comms.Timeout(5*time.Second))
	if err != nil {
		ns.Shutdown()
		t.Fatalf("%s - failed to connect: %v", publisherTestPrefix, err)
	}

	cleanup := func() {
		nc.Close()
		ns.Shutdown()
		ns.WaitForShutdown()
	}

	return nc, cleanup
}

func subscribeEvents(t *testing.T, nc *comms.Conn, subject string) (chan *ActionCompletedEvent, *comms.Subscription) {
	t.Helper()
	received := make(chan *ActionCompletedEvent, 4)
	sub, err := nc.Subscribe(subject, func(msg *comms.Msg) {
		var event ActionCompletedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			t.Errorf("%s - failed to unmarshal: %v", publisherTestPrefix, err)
			return
		}
		received <- &event
	})
	if err != nil {
		t.Fatalf("%s - failed to subscribe to %s: %v", publisherTestPrefix, subject, err)
	}
	return received, sub
}

func sampleEvent() *ActionCompletedEvent {
	return &ActionCompletedEvent{
		InvocationID: "inv-123",
		SessionID:    "session-1",
		Operation:    "list_backup_vaults",
		Region:       "us-east-1",
		AccountID:    "123456789012",
		State:        "SUCCESS",
		Outcomes:     []string{"SUCCEEDED"},
		BodyBytes:    310,
		DurationMs:   42,
		Timestamp:    "2026-01-01T00:00:00Z",
	}
}

func TestCommsPublisher_PublishCompleted_GranularSubject(t *testing.T) {
	nc, cleanup := startTestServer(t, 14230)
	defer cleanup()

	received, sub := subscribeEvents(t, nc, "agent.action.completed.list_backup_vaults")
	defer sub.Unsubscribe()

	if err := NewCommsPublisher(nc, nil).PublishCompleted(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("%s - PublishCompleted failed: %v", publisherTestPrefix, err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.InvocationID != "inv-123" {
			t.Errorf("%s - InvocationID = %q, want %q", publisherTestPrefix, got.InvocationID, "inv-123")
		}
		if got.BodyBytes != 310 {
			t.Errorf("%s - BodyBytes = %d, want 310", publisherTestPrefix, got.BodyBytes)
		}
		if len(got.Outcomes) != 1 || got.Outcomes[0] != "SUCCEEDED" {
			t.Errorf("%s - Outcomes = %v", publisherTestPrefix, got.Outcomes)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - timed out waiting for granular event", publisherTestPrefix)
	}
}

func TestCommsPublisher_PublishCompleted_GlobalSubject(t *testing.T) {
	nc, cleanup := startTestServer(t, 14231)
	defer cleanup()

	received, sub := subscribeEvents(t, nc, "agent.action.completed")
	defer sub.Unsubscribe()

	if err := NewCommsPublisher(nc, nil).PublishCompleted(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("%s - PublishCompleted failed: %v", publisherTestPrefix, err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.Operation != "list_backup_vaults" {
			t.Errorf("%s - Operation = %q", publisherTestPrefix, got.Operation)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - timed out waiting for global event", publisherTestPrefix)
	}
}

func TestCommsPublisher_CustomGlobalSubject(t *testing.T) {
	nc, cleanup := startTestServer(t, 14232)
	defer cleanup()

	received, sub := subscribeEvents(t, nc, "ops.audit")
	defer sub.Unsubscribe()

	pub := NewCommsPublisher(nc, &CommsPublisherOpts{GlobalSubject: "ops.audit"})
	if err := pub.PublishCompleted(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("%s - PublishCompleted failed: %v", publisherTestPrefix, err)
	}
	nc.Flush()

	select {
	case got := <-received:
		if got.State != "SUCCESS" {
			t.Errorf("%s - State = %q", publisherTestPrefix, got.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - timed out waiting for custom global event", publisherTestPrefix)
	}
}

func TestCommsPublisher_Headers(t *testing.T) {
	nc, cleanup := startTestServer(t, 14233)
	defer cleanup()

	msgs := make(chan *comms.Msg, 4)
	sub, err := nc.ChanSubscribe("agent.action.completed.>", msgs)
	if err != nil {
		t.Fatalf("%s - failed to subscribe: %v", publisherTestPrefix, err)
	}
	defer sub.Unsubscribe()

	event := sampleEvent()
	event.State = "REPROMPT"
	if err := NewCommsPublisher(nc, nil).PublishCompleted(context.Background(), event); err != nil {
		t.Fatalf("%s - PublishCompleted failed: %v", publisherTestPrefix, err)
	}
	nc.Flush()

	select {
	case msg := <-msgs:
		if got := msg.Header.Get(HeaderState); got != "REPROMPT" {
			t.Errorf("%s - %s = %q, want REPROMPT", publisherTestPrefix, HeaderState, got)
		}
		if got := msg.Header.Get(HeaderOperation); got != "list_backup_vaults" {
			t.Errorf("%s - %s = %q", publisherTestPrefix, HeaderOperation, got)
		}
		if got := msg.Header.Get(comms.MsgIdHdr); got != "inv-123" {
			t.Errorf("%s - %s = %q, want inv-123", publisherTestPrefix, comms.MsgIdHdr, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - timed out waiting for event", publisherTestPrefix)
	}
}

func TestCommsPublisher_SameSubjectPublishedOnce(t *testing.T) {
	nc, cleanup := startTestServer(t, 14234)
	defer cleanup()

	subject := "agent.action.completed.list_backup_vaults"
	received, sub := subscribeEvents(t, nc, subject)
	defer sub.Unsubscribe()

	pub := NewCommsPublisher(nc, &CommsPublisherOpts{GlobalSubject: subject})
	if err := pub.PublishCompleted(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("%s - PublishCompleted failed: %v", publisherTestPrefix, err)
	}
	nc.Flush()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatalf("%s - timed out waiting for event", publisherTestPrefix)
	}
	select {
	case <-received:
		t.Errorf("%s - event delivered twice on %s", publisherTestPrefix, subject)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCommsPublisher_CanceledContext(t *testing.T) {
	nc, cleanup := startTestServer(t, 14235)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewCommsPublisher(nc, nil).PublishCompleted(ctx, sampleEvent()); err == nil {
		t.Errorf("%s - expected an error for a canceled context", publisherTestPrefix)
	}
}
