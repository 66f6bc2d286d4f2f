package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/wyfcoding/cartera/internal/cartera/application"
	"github.com/wyfcoding/cartera/internal/cartera/domain"
)

type recordingPublisher struct {
	mu      sync.Mutex
	batches [][]*domain.LedgerEvent
	err     error
}

func (p *recordingPublisher) Publish(_ context.Context, events []*domain.LedgerEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.batches = append(p.batches, events)
	return nil
}

func TestOutboxRelayFlush(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, n := range []string{"CR-301", "CR-302", "CR-303"} {
		f.originate(t, n, false)
	}

	pub := &recordingPublisher{}
	relay := application.NewOutboxRelay(f.repos.Events, pub, nil, nil, time.Minute, 2)
	n, err := relay.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if n != 3 || len(pub.batches) != 2 {
		t.Errorf("published %d events in %d batches, want 3 in 2", n, len(pub.batches))
	}
	if pub.batches[0][0].Tipo != domain.EventOriginacion {
		t.Errorf("first event = %s", pub.batches[0][0].Tipo)
	}

	n, err = relay.Flush(ctx)
	if err != nil || n != 0 {
		t.Errorf("second Flush() = %d, %v; want nothing left", n, err)
	}
}

func TestOutboxRelayKeepsEventsOnPublishFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.originate(t, "CR-310", false)

	pub := &recordingPublisher{err: errors.New("broker unavailable")}
	relay := application.NewOutboxRelay(f.repos.Events, pub, nil, nil, time.Minute, 10)
	if _, err := relay.Flush(ctx); err == nil {
		t.Fatal("Flush() should fail when the broker is down")
	}
	pending, err := f.repos.Events.ListUnpublished(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("unpublished = %d, %v; want 1", len(pending), err)
	}

	pub.err = nil
	if n, err := relay.Flush(ctx); err != nil || n != 1 {
		t.Errorf("retry Flush() = %d, %v", n, err)
	}
}
