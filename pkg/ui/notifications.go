package ui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"igarchive/pkg/models"
)

const notifyTimeout = 5 * time.Second

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// commandSender shells out to the platform's notification tool
type commandSender struct {
	name string
	args func(title, message string) []string
}

func (c commandSender) Send(title, message string) error {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	return exec.CommandContext(ctx, c.name, c.args(title, message)...).Run()
}

const windowsToast = `
[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
$doc.LoadXml('<toast><visual><binding template="ToastText02"><text id="1">%s</text><text id="2">%s</text></binding></visual></toast>')
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier("igarchive").Show([Windows.UI.Notifications.ToastNotification]::new($doc))
`

var platformSenders = map[string]commandSender{
	"linux": {
		name: "notify-send",
		args: func(title, message string) []string {
			return []string{"--app-name=igarchive", title, message}
		},
	},
	"darwin": {
		name: "osascript",
		args: func(title, message string) []string {
			script := fmt.Sprintf(`display notification "%s" with title "%s"`, escapeQuotes(message), escapeQuotes(title))
			return []string{"-e", script}
		},
	},
	"windows": {
		name: "powershell",
		args: func(title, message string) []string {
			script := fmt.Sprintf(windowsToast, xmlEscape(title), xmlEscape(message))
			return []string{"-NoProfile", "-NonInteractive", "-Command", script}
		},
	},
}

// Notifier prints run results and mirrors them as desktop notifications
type Notifier struct {
	sender NotificationSender
}

// NewNotifier creates a Notifier for the current platform. Desktop
// notifications are skipped when enabled is false or the platform has none.
func NewNotifier(enabled bool) *Notifier {
	if !enabled {
		return &Notifier{}
	}
	if s, ok := platformSenders[runtime.GOOS]; ok {
		return &Notifier{sender: s}
	}
	return &Notifier{}
}

// NewNotifierWithSender creates a Notifier with an explicit sender
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// NotifyOutcome reports a finished run
func (n *Notifier) NotifyOutcome(o models.RunOutcome) {
	title := "igarchive: " + o.Partition
	color := Green
	if !o.Succeeded() {
		color = Red
	}
	n.send(title, o.Message(), color)
}

// NotifyError reports a failure that prevented a run
func (n *Notifier) NotifyError(title string, err error) {
	n.send(title, err.Error(), Red)
}

func (n *Notifier) send(title, message string, color func(...string) string) {
	fmt.Fprintf(Out, "\n%s: %s\n", Cyan(title), color(message))

	// best effort
	if n.sender != nil {
		_ = n.sender.Send(title, message)
	}
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

var xmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "'", "&apos;", `"`, "&quot;")

func xmlEscape(s string) string {
	return xmlReplacer.Replace(s)
}
