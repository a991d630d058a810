package crosslist

import "fmt"

// Message is one sale notification. It is produced by a notification
// source, consumed exactly once by ToItem, and never persisted.
type Message struct {
	// Platform is the marketplace that sent the notification.
	Platform Platform

	// Subject is the notification's subject line.
	Subject string

	// Body is the opaque notification text the item identifier is
	// extracted from.
	Body string
}

// ToItem extracts the platform-local item identifier from the message body
// using the platform's extraction pattern. The returned item carries an
// empty crostore id: canonical resolution happens later, against the
// mapping store.
//
// Returns ErrItemIDNotFound when the pattern does not match the body.
func (m Message) ToItem() (Item, error) {
	match := m.Platform.ItemIDPattern().FindStringSubmatch(m.Body)
	if len(match) < 2 || match[1] == "" {
		return Item{}, fmt.Errorf("%w: subject %q", ErrItemIDNotFound, m.Subject)
	}
	return m.Platform.CreateItem(match[1], ""), nil
}
