package model

import "time"

// Notification tags group notifications on the client so a newer one replaces an older one.
const (
	TagNotify = "demo_testmessage"
	TagTrivia = "demo_trivia"
)

const (
	DefaultTitle = "Push Demo"
	DefaultLang  = "en"
)

// NotificationAction is a button shown on the notification.
type NotificationAction struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Notification mirrors the options a service worker passes to showNotification.
// It is serialized as JSON and encrypted into the push message payload.
type Notification struct {
	Title              string               `json:"title"`
	Lang               string               `json:"lang"`
	Body               string               `json:"body"`
	Tag                string               `json:"tag"`
	Image              string               `json:"image,omitempty"`
	Icon               string               `json:"icon,omitempty"`
	Badge              string               `json:"badge,omitempty"`
	Timestamp          int64                `json:"timestamp"`
	RequireInteraction bool                 `json:"requireInteraction"`
	Actions            []NotificationAction `json:"actions"`
}

// NewNotification returns a notification with the given body and every other field defaulted.
func NewNotification(body string) Notification {
	return Notification{
		Title:     DefaultTitle,
		Lang:      DefaultLang,
		Body:      body,
		Timestamp: time.Now().UnixMilli(),
		Actions:   []NotificationAction{},
	}
}

// Normalize fills fields a decoder may have left empty.
func (n *Notification) Normalize() {
	if n.Title == "" {
		n.Title = DefaultTitle
	}
	if n.Lang == "" {
		n.Lang = DefaultLang
	}
	if n.Timestamp == 0 {
		n.Timestamp = time.Now().UnixMilli()
	}
	if n.Actions == nil {
		n.Actions = []NotificationAction{}
	}
}
