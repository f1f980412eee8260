package chatplatform

import (
	"testing"
	"time"
)

func TestMockSourceEmitsAfterConnect(t *testing.T) {
	s := NewMockSource(5 * time.Millisecond)
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer s.Disconnect()

	select {
	case msg := <-s.Messages():
		if msg.Platform != PlatformMock {
			t.Fatalf("Platform = %q, want %q", msg.Platform, PlatformMock)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a mock message")
	}
}

func TestWebhookSourceRejectsPushBeforeConnect(t *testing.T) {
	s := NewWebhookSource(4)
	if err := s.Push(ChatMessage{Text: "hi"}); err == nil {
		t.Fatalf("Push() before Connect() should error")
	}
}

func TestWebhookSourcePushDeliversToMessages(t *testing.T) {
	s := NewWebhookSource(4)
	if err := s.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := s.Push(ChatMessage{UserID: "u1", Text: "hello", Platform: PlatformWebhook}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	select {
	case msg := <-s.Messages():
		if msg.UserID != "u1" || msg.Text != "hello" {
			t.Fatalf("Messages() = %+v, want UserID=u1 Text=hello", msg)
		}
	default:
		t.Fatalf("expected a buffered message")
	}
}

func TestWebhookSourceFullBufferErrors(t *testing.T) {
	s := NewWebhookSource(1)
	_ = s.Connect()

	if err := s.Push(ChatMessage{Text: "first"}); err != nil {
		t.Fatalf("first Push() error = %v", err)
	}
	if err := s.Push(ChatMessage{Text: "second"}); err != ErrWebhookFull {
		t.Fatalf("second Push() error = %v, want ErrWebhookFull", err)
	}
}
