package term

import "github.com/danielgatis/go-ansicode"

// NotificationPayload is one desktop-notification request (OSC 99): the
// decoder's parsed key=value metadata plus the payload bytes. Multi-part
// notifications arrive as several payloads sharing an ID, with Done
// marking the last part. Aliased so embedders never import the decoder
// package directly.
type NotificationPayload = ansicode.NotificationPayload

// NotificationProvider presents desktop notifications. Notify returns the
// reply to send back for query payloads ("" for none); the terminal
// writes it to the response provider verbatim.
type NotificationProvider interface {
	Notify(payload *NotificationPayload) string
}

// NoopNotification drops notifications and answers queries with nothing.
type NoopNotification struct{}

// Notify discards the payload.
func (NoopNotification) Notify(payload *NotificationPayload) string { return "" }

var _ NotificationProvider = NoopNotification{}

// DesktopNotification routes one notification payload to the provider,
// writing back whatever reply the provider produces. With no provider the
// payload is dropped.
func (t *Terminal) DesktopNotification(payload *NotificationPayload) {
	if t.middleware != nil && t.middleware.DesktopNotification != nil {
		t.middleware.DesktopNotification(payload, t.desktopNotificationInternal)
		return
	}
	t.desktopNotificationInternal(payload)
}

func (t *Terminal) desktopNotificationInternal(payload *NotificationPayload) {
	t.mu.RLock()
	provider := t.notificationProvider
	t.mu.RUnlock()

	if provider == nil {
		return
	}
	if reply := provider.Notify(payload); reply != "" {
		t.writeResponseString(reply)
	}
}
