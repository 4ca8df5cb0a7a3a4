package privacy

import (
	"time"

	"github.com/akshitha1024/traceback/report"
)

// Placeholder values shown in place of redacted fields.
const (
	RedactedDetails = "Details hidden for privacy protection"
	RedactedName    = "Anonymous"
	RedactedContact = "Available after verification"
)

// View is a found report shaped for display, with private fields redacted
// unless the viewer holds a valid reveal token for the item.
type View struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Category        string     `json:"category"`
	Location        string     `json:"location"`
	Color           string     `json:"color"`
	CurrentLocation string     `json:"current_location"`
	DateFound       time.Time  `json:"date_found"`
	ImageRef        *string    `json:"image_ref,omitempty"`
	FinderName      string     `json:"finder_name"`
	FinderContact   string     `json:"finder_contact"`
	Redacted        bool       `json:"redacted"`
	PublicAt        *time.Time `json:"public_at,omitempty"`
}

// Unredacted renders the full view of an item. Callers use it when the
// viewer is entitled to everything, such as the finder viewing their own
// report or a claimant who just verified.
func Unredacted(item report.FoundItem) View {
	return View{
		ID:              item.ID,
		Title:           item.Title,
		Description:     item.Description,
		Category:        item.Category,
		Location:        item.Location,
		Color:           item.Color,
		CurrentLocation: item.CurrentLocation,
		DateFound:       item.DateFound,
		ImageRef:        item.ImageRef,
		FinderName:      item.FinderName,
		FinderContact:   item.FinderEmail,
		PublicAt:        item.PrivacyExpiresAt,
	}
}

// Manager decides what each viewer sees of a found report.
type Manager struct {
	tokens *TokenIssuer
}

func NewManager(tokens *TokenIssuer) *Manager {
	return &Manager{tokens: tokens}
}

// View renders the item for a viewer. An item is effectively public once its
// privacy window has elapsed, even before the sweep flips the stored flag.
// A reveal token issued for this item bypasses redaction.
func (m *Manager) View(item report.FoundItem, now time.Time, revealToken string) View {
	v := Unredacted(item)

	if !m.isPrivate(item, now) {
		return v
	}

	if revealToken != "" {
		itemID, _, err := m.tokens.Verify(revealToken)
		if err == nil && itemID == item.ID {
			return v
		}
	}

	v.Description = RedactedDetails
	v.CurrentLocation = RedactedDetails
	v.FinderName = RedactedName
	v.FinderContact = RedactedContact
	v.ImageRef = nil
	v.Redacted = true
	return v
}

// isPrivate reports whether the item is still in its privacy window. An
// item marked private without an expiry is treated as public.
func (m *Manager) isPrivate(item report.FoundItem, now time.Time) bool {
	if item.Visibility != report.VisibilityPrivate {
		return false
	}
	if item.PrivacyExpiresAt == nil {
		return false
	}
	return now.Before(*item.PrivacyExpiresAt)
}
