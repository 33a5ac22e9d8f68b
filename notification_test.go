package term

import (
	"bytes"
	"testing"
)

type captureNotifier struct {
	payloads   []*NotificationPayload
	queryReply string
}

func (n *captureNotifier) Notify(payload *NotificationPayload) string {
	n.payloads = append(n.payloads, payload)
	if payload.PayloadType == "?" {
		return n.queryReply
	}
	return ""
}

func TestDesktopNotificationReachesProvider(t *testing.T) {
	notifier := &captureNotifier{}
	term := New(WithNotification(notifier))

	term.DesktopNotification(&NotificationPayload{
		ID:          "n1",
		PayloadType: "title",
		Data:        []byte("build done"),
		Done:        true,
	})

	if len(notifier.payloads) != 1 {
		t.Fatalf("provider saw %d payloads, want 1", len(notifier.payloads))
	}
	got := notifier.payloads[0]
	if got.ID != "n1" || string(got.Data) != "build done" || !got.Done {
		t.Errorf("payload = %+v", got)
	}
}

func TestDesktopNotificationQueryReplyIsWrittenBack(t *testing.T) {
	reply := "\x1b]99;i=n1;p=?\x1b\\"
	notifier := &captureNotifier{queryReply: reply}
	var buf bytes.Buffer
	term := New(WithNotification(notifier), WithResponse(&buf))

	term.DesktopNotification(&NotificationPayload{ID: "n1", PayloadType: "?"})

	if buf.String() != reply {
		t.Errorf("response = %q, want %q", buf.String(), reply)
	}
}

func TestDesktopNotificationNilProvider(t *testing.T) {
	term := New()
	term.SetNotificationProvider(nil)
	// Must not panic.
	term.DesktopNotification(&NotificationPayload{PayloadType: "title"})
}

func TestDefaultNotificationProviderIsNoop(t *testing.T) {
	term := New()
	p := term.NotificationProvider()
	if p == nil {
		t.Fatal("expected a default provider")
	}
	if reply := p.Notify(&NotificationPayload{PayloadType: "title"}); reply != "" {
		t.Errorf("noop reply = %q, want empty", reply)
	}
}

func TestDesktopNotificationMiddleware(t *testing.T) {
	notifier := &captureNotifier{}
	term := New(
		WithNotification(notifier),
		WithMiddleware(&Middleware{
			DesktopNotification: func(payload *NotificationPayload, next func(*NotificationPayload)) {
				altered := *payload
				altered.ID = "rewritten"
				next(&altered)
			},
		}),
	)

	term.DesktopNotification(&NotificationPayload{ID: "original", PayloadType: "title"})

	if len(notifier.payloads) != 1 || notifier.payloads[0].ID != "rewritten" {
		t.Errorf("middleware rewrite not applied: %+v", notifier.payloads)
	}
}

func TestDesktopNotificationMiddlewareCanBlock(t *testing.T) {
	notifier := &captureNotifier{}
	term := New(
		WithNotification(notifier),
		WithMiddleware(&Middleware{
			DesktopNotification: func(payload *NotificationPayload, next func(*NotificationPayload)) {},
		}),
	)

	term.DesktopNotification(&NotificationPayload{PayloadType: "title"})
	if len(notifier.payloads) != 0 {
		t.Error("blocked notification reached the provider")
	}
}
