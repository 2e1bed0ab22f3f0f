package realtime

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMemorySendReachesSubscriber(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var got []ChatRead
	rx := m.Channel(ReadStatusChannel("u1"))
	rx.On(EventChatRead, func(raw json.RawMessage) {
		var cr ChatRead
		if err := json.Unmarshal(raw, &cr); err != nil {
			t.Fatal(err)
		}
		got = append(got, cr)
	})
	if err := rx.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}

	// A separate channel instance with the same name sends without
	// subscribing, like a conversation view signalling the sidebar.
	tx := m.Channel(ReadStatusChannel("u1"))
	if err := tx.Send(ctx, EventChatRead, ChatRead{ChatID: "c1"}); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 || got[0].ChatID != "c1" {
		t.Fatalf("got %v, want one chat_read for c1", got)
	}
}

func TestMemoryEventFiltering(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	reads := 0
	ch := m.Channel(ChatChannel("c1"))
	ch.On(EventMessageRead, func(json.RawMessage) { reads++ })
	if err := ch.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}

	tx := m.Channel(ChatChannel("c1"))
	_ = tx.Send(ctx, EventNewMessage, map[string]string{"id": "m1"})
	_ = tx.Send(ctx, EventMessageRead, ReadReceipt{MessageID: "m1", ReaderID: "u2"})

	if reads != 1 {
		t.Errorf("got %d message_read deliveries, want 1", reads)
	}
}

func TestMemoryChannelIsolation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	delivered := 0
	ch := m.Channel(ChatChannel("c1"))
	ch.On(EventNewMessage, func(json.RawMessage) { delivered++ })
	if err := ch.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}

	other := m.Channel(ChatChannel("c2"))
	_ = other.Send(ctx, EventNewMessage, map[string]string{"id": "m1"})

	if delivered != 0 {
		t.Errorf("got %d deliveries across channels, want 0", delivered)
	}
}

func TestMemoryRemoveChannel(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	delivered := 0
	ch := m.Channel(ChatChannel("c1"))
	ch.On(EventNewMessage, func(json.RawMessage) { delivered++ })
	if err := ch.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}
	m.RemoveChannel(ch)

	tx := m.Channel(ChatChannel("c1"))
	_ = tx.Send(ctx, EventNewMessage, map[string]string{"id": "m1"})

	if delivered != 0 {
		t.Errorf("got %d deliveries after removal, want 0", delivered)
	}
}

// A handler may send on the same transport while an event is being
// delivered; the receipt protocol acks new_message with message_read on
// the same channel.
func TestMemoryReentrantSend(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var receipt *ReadReceipt
	receiver := m.Channel(ChatChannel("c1"))
	receiver.On(EventNewMessage, func(json.RawMessage) {
		_ = receiver.Send(ctx, EventMessageRead, ReadReceipt{MessageID: "m1", ReaderID: "u2"})
	})
	if err := receiver.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}

	sender := m.Channel(ChatChannel("c1"))
	sender.On(EventMessageRead, func(raw json.RawMessage) {
		var r ReadReceipt
		_ = json.Unmarshal(raw, &r)
		receipt = &r
	})
	if err := sender.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}

	if err := sender.Send(ctx, EventNewMessage, map[string]string{"id": "m1"}); err != nil {
		t.Fatal(err)
	}
	if receipt == nil || receipt.MessageID != "m1" {
		t.Fatalf("receipt = %+v, want message_read for m1", receipt)
	}
}

// A channel instance never receives its own broadcasts, matching the
// transport's fire-and-forget contract: the emitter already knows what
// it sent.
func TestMemoryNoSelfDelivery(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	delivered := 0
	ch := m.Channel(ChatChannel("c1"))
	ch.On(EventNewMessage, func(json.RawMessage) { delivered++ })
	if err := ch.Subscribe(ctx); err != nil {
		t.Fatal(err)
	}

	_ = ch.Send(ctx, EventNewMessage, map[string]string{"id": "m1"})

	if delivered != 0 {
		t.Errorf("got %d self deliveries, want 0", delivered)
	}
}

func TestDecodeMessageRejectsMalformed(t *testing.T) {
	if _, ok := DecodeMessage(json.RawMessage(`{"chat_id":"c1"}`)); ok {
		t.Error("decoded message without id, want rejection")
	}
	if _, ok := DecodeMessage(json.RawMessage(`not json`)); ok {
		t.Error("decoded invalid json, want rejection")
	}
	msg, ok := DecodeMessage(json.RawMessage(`{"id":"m1","chat_id":"c1","sender_id":"u1","content":"hi","created_at":1000,"sender":{"id":"u1","username":"a","display_name":"A"}}`))
	if !ok || msg.Content != "hi" {
		t.Fatalf("DecodeMessage = (%+v, %v), want valid message", msg, ok)
	}
}
