package mailer

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestRenderTicket(t *testing.T) {
	t.Parallel()

	msg, err := RenderTicket("ana@example.com", TicketData{EventName: "Semnas 2025", Name: "Ana <script>", UniqueID: "SEM-ABC"}, []byte("png"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg.To != "ana@example.com" || msg.Subject != "Your ticket for Semnas 2025" {
		t.Fatalf("unexpected headers %+v", msg)
	}
	for _, want := range []string{"cid:qrcode", "SEM-ABC", "Ana &lt;script&gt;"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestSMTPSender_BuildEmbedsQRCode(t *testing.T) {
	t.Parallel()

	s := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 1025, From: "noreply@example.com", FromName: "Check-in"}, nil)
	m := s.build(Message{To: "ana@example.com", Subject: "Ticket", HTML: `<img src="cid:qrcode">`, QRPNG: []byte("\x89PNG")})

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("write message: %v", err)
	}
	raw := buf.String()
	for _, want := range []string{"Content-ID: <qrcode>", "To: ana@example.com", "multipart/related"} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSMTPSender_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 1}, nil).Send(ctx, Message{To: "a@example.com"}); err == nil {
		t.Fatal("expected error for canceled context")
	}
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	if err := NewLogSender(nil).Send(context.Background(), Message{To: "a@example.com"}); err != nil {
		t.Fatalf("log sender: %v", err)
	}
}
