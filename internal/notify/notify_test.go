package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

func sampleEvent() OverriddenEvent {
	return OverriddenEvent{
		Type:                    EventReservationOverridden,
		ReservationID:           7,
		RoomID:                  1,
		RoomNumber:              "R1",
		TeamID:                  3,
		CreatedBy:               4,
		Start:                   time.Date(2017, 12, 25, 7, 30, 0, 0, time.UTC),
		End:                     time.Date(2017, 12, 25, 8, 30, 0, 0, time.UTC),
		OverridingReservationID: 8,
		OverridingTeamID:        5,
		OccurredAt:              time.Date(2017, 12, 20, 9, 0, 0, 0, time.UTC),
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	if err := (LogPublisher{}).PublishOverridden(ctx, sampleEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"reservation_id":7`, `"overriding_reservation_id":8`, `"event":"reservation.overridden"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output %q missing %s", out, want)
		}
	}
}

func TestAMQPPublisherClosed(t *testing.T) {
	p := &AMQPPublisher{queue: "test", done: true}
	err := p.PublishOverridden(context.Background(), sampleEvent())
	if !errors.Is(err, ErrPublisherClosed) {
		t.Fatalf("publish after close: got %v want %v", err, ErrPublisherClosed)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestAMQPPublisher(t *testing.T) {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		t.Skip("AMQP_URL not set")
	}
	queue := "roombook.test." + time.Now().Format("150405.000000")

	p, err := NewAMQPPublisher(url, queue)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.PublishOverridden(ctx, sampleEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	defer func() {
		_, _ = ch.QueueDelete(queue, false, false, false)
		_ = ch.Close()
	}()

	var msg amqp.Delivery
	var ok bool
	for i := 0; i < 50 && !ok; i++ {
		msg, ok, err = ch.Get(queue, true)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !ok {
			time.Sleep(100 * time.Millisecond)
		}
	}
	if !ok {
		t.Fatalf("no message delivered to %s", queue)
	}

	var got OverriddenEvent
	if err := json.Unmarshal(msg.Body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ReservationID != 7 || got.OverridingReservationID != 8 || msg.Type != EventReservationOverridden {
		t.Fatalf("event: got %+v type %q", got, msg.Type)
	}
}

func TestAMQPPublisherReopensClosedChannel(t *testing.T) {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		t.Skip("AMQP_URL not set")
	}
	queue := "roombook.test.reopen." + time.Now().Format("150405.000000")

	p, err := NewAMQPPublisher(url, queue)
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	defer p.Close()

	// Redeclaring the queue as non-durable fails the precondition and the
	// broker closes the channel while the connection stays up.
	if _, err := p.ch.QueueDeclare(queue, false, false, false, false, nil); err == nil {
		t.Fatalf("conflicting declare: expected precondition failure")
	}
	for i := 0; i < 50 && !p.ch.IsClosed(); i++ {
		time.Sleep(10 * time.Millisecond)
	}
	if !p.ch.IsClosed() || p.conn.IsClosed() {
		t.Fatalf("setup: channel closed %v connection closed %v", p.ch.IsClosed(), p.conn.IsClosed())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.PublishOverridden(ctx, sampleEvent()); err != nil {
		t.Fatalf("publish after channel close: %v", err)
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	defer func() {
		_, _ = ch.QueueDelete(queue, false, false, false)
		_ = ch.Close()
	}()

	var ok bool
	for i := 0; i < 50 && !ok; i++ {
		_, ok, err = ch.Get(queue, true)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if !ok {
			time.Sleep(100 * time.Millisecond)
		}
	}
	if !ok {
		t.Fatalf("no message delivered to %s after channel reopen", queue)
	}
}
