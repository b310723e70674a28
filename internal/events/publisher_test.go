package events

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"

	"github.com/hyy20190326/luis-0509/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.Enabled() {
				t.Error("expected publisher to be disabled")
			}
			if p.writer != nil {
				t.Error("expected nil writer when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	p := New(&Config{
		Enabled:   false,
		Brokers:   []string{"localhost:9092"},
		Topic:     "luis.test",
		Principal: "test-principal",
	})

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topic != "luis.test" {
		t.Errorf("expected topic 'luis.test', got %s", p.topic)
	}
}

func TestNew_Enabled(t *testing.T) {
	p := New(&Config{Enabled: true, Brokers: []string{"localhost:9092"}, Topic: "luis.test"})
	defer p.Close()

	if !p.Enabled() {
		t.Error("expected publisher to be enabled")
	}
	if p.writer == nil || p.writer.Topic != "luis.test" {
		t.Error("expected writer bound to topic")
	}
}

func TestPublisher_Publish_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false, Topic: "luis.test"})

	text := "hello"
	n := models.Notification{Session: "S1", Event: models.EventNLP, Text: &text}
	if err := p.Publish(context.Background(), "S1", n.Event, n); err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Publish_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})

	// channels cannot be marshaled
	if err := p.Publish(context.Background(), "S1", "x", make(chan int)); err == nil {
		t.Error("expected error for unmarshalable event")
	}
}

func TestPublisher_Close_NoWriter(t *testing.T) {
	p := &Publisher{}
	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing publisher without writer, got %v", err)
	}
}

func TestNewWriter_HashesByKey(t *testing.T) {
	w := newWriter([]string{"a:9092", "b:9092"}, "luis.test")
	defer w.Close()

	if _, ok := w.Balancer.(*kafka.Hash); !ok {
		t.Errorf("expected hash balancer, got %T", w.Balancer)
	}
	if w.RequiredAcks != kafka.RequireOne {
		t.Errorf("expected RequireOne, got %v", w.RequiredAcks)
	}
}
