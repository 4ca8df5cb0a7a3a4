package report

import "time"

// FoundStatus tracks the claim lifecycle of a found item. Finalized items
// are archived and deleted, so they never appear here.
type FoundStatus string

const (
	StatusOpen    FoundStatus = "open"
	StatusClaimed FoundStatus = "claimed"
)

// Visibility is a one-way switch: items start private and become public
// once the privacy window elapses. There is no transition back.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// AnswerKind classifies how a security question expects to be answered.
type AnswerKind string

const (
	AnswerFreeText AnswerKind = "text"
	AnswerChoice   AnswerKind = "choice"
	AnswerNumeric  AnswerKind = "numeric"
	AnswerYesNo    AnswerKind = "yesno"
)

// LostItem is the domain representation of a lost-item report. It mirrors
// the lost_items table and carries no JSON annotations so it can be reused
// by different presentation layers.
type LostItem struct {
	ID            string
	Title         string
	Description   string
	Category      string
	Location      string
	Color         string
	DateLost      time.Time
	ImageRef      *string
	ReporterEmail string
	Resolved      bool
	CreatedAt     time.Time
}

// FoundItem mirrors the found_items table plus the finder's display name
// resolved from the users table.
type FoundItem struct {
	ID               string
	Title            string
	Description      string
	Category         string
	Location         string
	Color            string
	CurrentLocation  string
	DateFound        time.Time
	ImageRef         *string
	FinderEmail      string
	FinderName       string
	FinderPhone      *string
	Status           FoundStatus
	Visibility       Visibility
	PrivacyExpiresAt *time.Time
	ClaimedAt        *time.Time
	CreatedAt        time.Time
}

// SecurityQuestion belongs to exactly one found item. The canonical answer
// is stored only as a bcrypt digest of its normalized form.
type SecurityQuestion struct {
	ID           string
	FoundItemID  string
	Question     string
	AnswerDigest string
	Kind         AnswerKind
	Position     int
}

// Filters enumerates the structured predicates supported by ListFound.
// Values are always bound as query parameters, never interpolated.
type Filters struct {
	Category   string
	Location   string
	Color      string
	Search     string
	OnlyPublic bool
	Limit      int
}
