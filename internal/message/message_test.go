package message

import (
	"context"
	"testing"
)

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), "t", "k", []byte("{}")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewKafkaPublisher_RequiresBrokers(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, "launchpad."); err == nil {
		t.Fatal("expected error without brokers")
	}
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "launchpad.")
	if err != nil {
		t.Fatalf("NewKafkaPublisher: %v", err)
	}
	_ = p.Close()
}

func TestNewRedisPublisher_RequiresAddr(t *testing.T) {
	if _, err := NewRedisPublisher(context.Background(), "", "", ""); err == nil {
		t.Fatal("expected error without address")
	}
}
