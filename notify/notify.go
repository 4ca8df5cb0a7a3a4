package notify

import (
	"context"
	"fmt"
	"log"
)

// KindItemPublic marks a visibility broadcast in the delivery ledger. Match
// alerts are not ledgered; their delivery state lives on the match record.
const KindItemPublic = "item_public"

// Notifier delivers a message to one recipient.
type Notifier interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogNotifier writes notifications to the process log. It stands in for a
// real mail transport in development and tests.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, recipient, subject, body string) error {
	log.Printf("notify: to=%s subject=%q body=%q", recipient, subject, body)
	return nil
}

// MatchFoundMessage composes the alert sent to a lost-report owner when a
// qualifying found item enters the catalog.
func MatchFoundMessage(lostTitle, foundTitle string, score float64) (subject, body string) {
	subject = fmt.Sprintf("Possible match for your lost %s", lostTitle)
	body = fmt.Sprintf(
		"A found item (%s) matches your lost report %q with a similarity of %.0f%%. Sign in to review the match and answer the verification questions.",
		foundTitle, lostTitle, score*100,
	)
	return subject, body
}

// ItemPublicMessage composes the broadcast sent when a private found item
// becomes publicly visible.
func ItemPublicMessage(title, category, location string) (subject, body string) {
	subject = fmt.Sprintf("New item available: %s", title)
	body = fmt.Sprintf(
		"A found item is now publicly listed: %s (%s), found near %s. If it could be yours, open the listing and verify ownership.",
		title, category, location,
	)
	return subject, body
}
