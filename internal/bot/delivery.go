package bot

import (
	"database/sql"
	"time"

	"github.com/edgard/botfriend/internal/database"
)

// Delivery is the handle a Publisher uses to report the outcome of one
// attempt. The driver persists the publication after the publisher returns.
type Delivery struct {
	pub      *database.Publication
	post     *database.Post
	now      func() time.Time
	reported bool
}

func newDelivery(pub *database.Publication, post *database.Post, now func() time.Time) *Delivery {
	return &Delivery{pub: pub, post: post, now: now}
}

// Service is the service name of the publication being attempted.
func (d *Delivery) Service() string {
	return d.pub.Service
}

// Content is the text to publish: the per-service override when one is set,
// otherwise the post content.
func (d *Delivery) Content() string {
	if d.pub.Content.Valid {
		return d.pub.Content.String
	}
	return d.post.Content
}

// SetContent stores a per-service override of the post content.
func (d *Delivery) SetContent(content string) {
	d.pub.Content = sql.NullString{String: content, Valid: true}
}

// ReportSuccess records a successful attempt. externalID is the identifier
// the service assigned, or empty when it has none.
func (d *Delivery) ReportSuccess(externalID string) {
	d.pub.ReportAttempt(d.now(), "")
	if externalID != "" {
		d.pub.ExternalID = sql.NullString{String: externalID, Valid: true}
	}
	d.reported = true
}

// ReportFailure records a failed attempt.
func (d *Delivery) ReportFailure(err error) {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	d.reportError(msg)
}

func (d *Delivery) reportError(msg string) {
	d.pub.ReportAttempt(d.now(), msg)
	d.reported = true
}

// Reported reports whether the publisher recorded an outcome.
func (d *Delivery) Reported() bool {
	return d.reported
}

// Record returns the underlying publication.
func (d *Delivery) Record() *database.Publication {
	return d.pub
}
