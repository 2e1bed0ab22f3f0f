package realtime_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tcosta/courier/internal/realtime"
	"github.com/tcosta/courier/internal/server/hub"
)

func testTransport(t *testing.T) (*realtime.WS, *realtime.WS) {
	t.Helper()
	h := hub.New(zap.NewNop())
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	a, err := realtime.DialWS(context.Background(), wsURL, "u1", zap.NewNop())
	if err != nil {
		t.Fatalf("dial a: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	b, err := realtime.DialWS(context.Background(), wsURL, "u2", zap.NewNop())
	if err != nil {
		t.Fatalf("dial b: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return a, b
}

func waitFor(t *testing.T, ch <-chan json.RawMessage) json.RawMessage {
	t.Helper()
	select {
	case raw := <-ch:
		return raw
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestWSSendReachesOtherClient(t *testing.T) {
	a, b := testTransport(t)

	got := make(chan json.RawMessage, 1)
	sub := b.Channel(realtime.ChatChannel("c1")).
		On(realtime.EventNewMessage, func(raw json.RawMessage) { got <- raw })
	if err := sub.Subscribe(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Let the subscribe frame land before sending.
	time.Sleep(50 * time.Millisecond)

	sender := a.Channel(realtime.ChatChannel("c1"))
	if err := sender.Send(context.Background(), realtime.EventNewMessage, map[string]string{"body": "hi"}); err != nil {
		t.Fatal(err)
	}

	var payload map[string]string
	if err := json.Unmarshal(waitFor(t, got), &payload); err != nil {
		t.Fatal(err)
	}
	if payload["body"] != "hi" {
		t.Errorf("payload = %v", payload)
	}
}

func TestWSInstanceNeverHearsItself(t *testing.T) {
	a, b := testTransport(t)

	self := make(chan json.RawMessage, 1)
	other := make(chan json.RawMessage, 1)

	ch := a.Channel(realtime.ChatChannel("c1")).
		On(realtime.EventChatRead, func(raw json.RawMessage) { self <- raw })
	if err := ch.Subscribe(context.Background()); err != nil {
		t.Fatal(err)
	}
	sub := b.Channel(realtime.ChatChannel("c1")).
		On(realtime.EventChatRead, func(raw json.RawMessage) { other <- raw })
	if err := sub.Subscribe(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := ch.Send(context.Background(), realtime.EventChatRead, realtime.ChatRead{ChatID: "c1"}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, other)
	select {
	case <-self:
		t.Error("subscribed instance received its own send")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWSSiblingInstanceOnSameConnectionHears(t *testing.T) {
	a, _ := testTransport(t)

	sidebar := make(chan json.RawMessage, 1)
	sub := a.Channel(realtime.ReadStatusChannel("u1")).
		On(realtime.EventChatRead, func(raw json.RawMessage) { sidebar <- raw })
	if err := sub.Subscribe(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	// A second instance of the same channel on the same connection, as a
	// conversation view announcing its read state: the sidebar instance
	// still gets it.
	announcer := a.Channel(realtime.ReadStatusChannel("u1"))
	if err := announcer.Send(context.Background(), realtime.EventChatRead, realtime.ChatRead{ChatID: "c9"}); err != nil {
		t.Fatal(err)
	}

	var cr realtime.ChatRead
	if err := json.Unmarshal(waitFor(t, sidebar), &cr); err != nil {
		t.Fatal(err)
	}
	if cr.ChatID != "c9" {
		t.Errorf("chat id = %q, want c9", cr.ChatID)
	}
}

func TestWSRemoveChannelStopsDelivery(t *testing.T) {
	a, b := testTransport(t)

	got := make(chan json.RawMessage, 1)
	sub := b.Channel(realtime.ChatChannel("c1")).
		On(realtime.EventNewMessage, func(raw json.RawMessage) { got <- raw })
	if err := sub.Subscribe(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	b.RemoveChannel(sub)
	time.Sleep(50 * time.Millisecond)

	if err := a.Channel(realtime.ChatChannel("c1")).Send(context.Background(), realtime.EventNewMessage, map[string]string{}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-got:
		t.Error("received event after RemoveChannel")
	case <-time.After(200 * time.Millisecond):
	}
}
