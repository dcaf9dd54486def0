package sessions

import (
	"context"
	"testing"

	"github.com/nexuscore/agentd/internal/monitor"
	"github.com/nexuscore/agentd/pkg/chatmodel"
)

func TestMemoryStoreSessionLifecycle(t *testing.T) {
	store := NewMemoryStore()

	session, err := store.CreateSession(context.Background(), chatmodel.ChannelChat, "NORMAL")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if session.ID == "" {
		t.Fatalf("expected session id to be assigned")
	}

	loaded, err := store.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if loaded.Channel != chatmodel.ChannelChat {
		t.Fatalf("expected channel %q, got %q", chatmodel.ChannelChat, loaded.Channel)
	}

	if _, err := store.GetSession(context.Background(), "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreMessages(t *testing.T) {
	store := NewMemoryStore()
	session, err := store.CreateSession(context.Background(), chatmodel.ChannelChat, "NORMAL")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	msg := chatmodel.Message{Role: chatmodel.RoleUser, Content: "hello"}
	if err := store.AppendMessage(context.Background(), session.ID, msg); err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	loaded, err := store.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("GetSession() error = %v", err)
	}
	if len(loaded.Messages) != 1 || loaded.Messages[0].Content != "hello" {
		t.Fatalf("expected 1 message %q, got %+v", "hello", loaded.Messages)
	}
}

func TestMemoryStoreRecordMetric(t *testing.T) {
	store := NewMemoryStore()
	session, err := store.CreateSession(context.Background(), chatmodel.ChannelChat, "NORMAL")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	summary := monitor.Summary{TraceID: "trace-1", SampleCount: 3}
	if err := store.RecordMetric(context.Background(), session.ID, summary); err != nil {
		t.Fatalf("RecordMetric() error = %v", err)
	}

	if err := store.RecordMetric(context.Background(), "missing", summary); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStoreList(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.CreateSession(context.Background(), chatmodel.ChannelChat, "NORMAL"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if _, err := store.CreateSession(context.Background(), chatmodel.ChannelCodeTask, "NORMAL"); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	all, err := store.List(context.Background(), ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(all))
	}

	filtered, err := store.List(context.Background(), ListOptions{Channel: chatmodel.ChannelCodeTask})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(filtered) != 1 {
		t.Fatalf("expected 1 session, got %d", len(filtered))
	}
}
