package mail

import (
	"context"
	"testing"
)

func TestMockSender_RecordsCalls(t *testing.T) {
	m := &MockSender{}
	if err := m.Send(context.Background(), "medico@hospital.example", "Nueva solicitud", "cuerpo"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := m.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(calls))
	}
	if calls[0].To != "medico@hospital.example" || calls[0].Subject != "Nueva solicitud" {
		t.Errorf("unexpected call: %+v", calls[0])
	}
}

func TestMockSender_Failure(t *testing.T) {
	m := &MockSender{ShouldFail: true, FailError: "relay unavailable"}
	err := m.Send(context.Background(), "a@b.c", "s", "b")
	if err == nil || err.Error() != "relay unavailable" {
		t.Fatalf("expected configured failure, got %v", err)
	}
	if len(m.Calls()) != 1 {
		t.Error("failed attempts should still be recorded")
	}
}

func TestSMTPSender_RequiresHost(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{})
	if err := s.Send(context.Background(), "a@b.c", "s", "b"); err == nil {
		t.Fatal("expected error when host is not configured")
	}
}
