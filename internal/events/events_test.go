package events

import (
	"context"
	"testing"
)

func TestNilPublisherIsSilent(t *testing.T) {
	var p *Publisher
	if err := p.Publish(context.Background(), RunCompleted, map[string]int{"prepped": 2}); err != nil {
		t.Errorf("nil publisher Publish returned %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil publisher Close returned %v", err)
	}
}

func TestConnectRejectsBadURL(t *testing.T) {
	if _, err := Connect(context.Background(), "://not-a-url"); err == nil {
		t.Error("expected error for malformed redis url")
	}
}
