package telephony

import (
	"strings"
	"testing"
)

func TestDocument_VoicemailShape(t *testing.T) {
	doc := (&Document{}).
		Say("Please leave a message after the tone.").
		Record(30, 120, "https://app.example.com/webhooks/voice/org-1/recording")

	out, err := doc.Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{"<Say>", "<Record", `timeout="30"`, `maxLength="120"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in twiml:\n%s", want, out)
		}
	}
}

func TestDocument_DialClient(t *testing.T) {
	out, err := (&Document{}).DialClient("agent-browser", 30).Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !strings.Contains(out, "<Client>agent-browser</Client>") {
		t.Fatalf("expected client dial, got:\n%s", out)
	}
}

func TestDocument_GatherWithPrompt(t *testing.T) {
	out, err := (&Document{}).
		Gather(1, 10, "https://app.example.com/webhooks/voice/org-1/menu", "Press 1 for sales.").
		Redirect("https://app.example.com/webhooks/voice/org-1").
		Render()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, want := range []string{`numDigits="1"`, `timeout="10"`, "<Say>Press 1 for sales.</Say>", "<Redirect>"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in twiml:\n%s", want, out)
		}
	}
}

func TestAck_IsEmptyResponse(t *testing.T) {
	out := Ack()
	if !strings.Contains(out, "<Response") {
		t.Fatalf("expected bare response, got:\n%s", out)
	}
	if strings.Contains(out, "<Say") || strings.Contains(out, "<Dial") {
		t.Fatalf("ack must carry no verbs:\n%s", out)
	}
}
