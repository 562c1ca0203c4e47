// Package model holds the marketplace domain types shared by the matching
// engine, the alert pipeline and the store.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ListingKind separates the two populations of postings on the board.
type ListingKind string

const (
	// KindSeekingWork is an availability posting: someone offering their time.
	KindSeekingWork ListingKind = "seeking_work"
	// KindSeekingHelp is a job posting: someone looking for a helper.
	KindSeekingHelp ListingKind = "seeking_help"
)

// Valid reports whether the kind is one of the known listing kinds.
func (k ListingKind) Valid() bool {
	return k == KindSeekingWork || k == KindSeekingHelp
}

// Listing is a single job or availability posting.
type Listing struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Kind        ListingKind
	Title       string
	Description string
	// Skills are case-normalized tags; order carries no meaning.
	Skills    []string
	RateMin   *int
	RateMax   *int
	Remote    bool
	Location  string
	CreatedAt time.Time
	ExpiresAt *time.Time
	Active    bool
}

// Eligible reports whether the listing may appear in match results: it must
// be active and either carry no expiry or expire after now.
func (l *Listing) Eligible(now time.Time) bool {
	if !l.Active {
		return false
	}
	return l.ExpiresAt == nil || l.ExpiresAt.After(now)
}

// Profile is the minimal public subset of a user used for scoring context
// and match attribution.
type Profile struct {
	ID       uuid.UUID
	Name     string
	Headline string
}

// SavedQuery is a standing search a user wants re-evaluated over time.
type SavedQuery struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	Name          string
	Kind          ListingKind
	Query         string
	Skills        []string
	RateMin       *int
	RateMax       *int
	RemoteOnly    bool
	Location      string
	NotifyByEmail bool
	// LastEvaluatedAt is the sweep cursor. Only the alert scheduler advances
	// it, and only forward.
	LastEvaluatedAt *time.Time
	CreatedAt       time.Time
	Active          bool
}

// Matches reports whether the listing satisfies every filter of the saved
// query. It is a pure function: ad hoc runs and scheduler sweeps must agree
// on the same (query, listing) pair.
func (q *SavedQuery) Matches(l *Listing) bool {
	if l.Kind != q.Kind {
		return false
	}
	if !ratesOverlap(q.RateMin, q.RateMax, l.RateMin, l.RateMax) {
		return false
	}
	if q.RemoteOnly && !l.Remote {
		return false
	}
	if q.Location != "" && !strings.Contains(strings.ToLower(l.Location), strings.ToLower(q.Location)) {
		return false
	}
	if len(q.Skills) > 0 && !skillsIntersect(q.Skills, l.Skills) {
		return false
	}
	return true
}

// ratesOverlap treats missing bounds as open intervals, so a query without
// rate bounds matches everything and a listing without a rate is never
// excluded by rate alone.
func ratesOverlap(qMin, qMax, lMin, lMax *int) bool {
	if qMin != nil && lMax != nil && *lMax < *qMin {
		return false
	}
	if qMax != nil && lMin != nil && *lMin > *qMax {
		return false
	}
	return true
}

func skillsIntersect(want, have []string) bool {
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(w, h) {
				return true
			}
		}
	}
	return false
}

// NormalizeSkills lowercases, trims and deduplicates skill tags, preserving
// first-seen order.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]struct{}, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// NotificationKind classifies inbox notifications.
type NotificationKind string

const (
	NotificationNewMatch        NotificationKind = "new_match"
	NotificationMessageReceived NotificationKind = "message_received"
	NotificationListingExpiring NotificationKind = "listing_expiring"
	NotificationContactShared   NotificationKind = "contact_shared"
)

// DeliveryStatus is the outbound delivery state of a notification.
type DeliveryStatus string

const (
	DeliveryPending           DeliveryStatus = "pending"
	DeliveryDelivered         DeliveryStatus = "delivered"
	DeliveryFailedPermanently DeliveryStatus = "failed_permanently"
)

// Notification is a durable inbox record driving outbound delivery.
// For kind new_match the (recipient, saved query, listing) triple is unique:
// the same listing never notifies the same saved query twice.
type Notification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	Kind        NotificationKind
	Title       string
	Body        string
	// SavedQueryID and ListingID carry the kind-specific metadata for
	// new_match (both) and listing_expiring (listing only).
	SavedQueryID  *uuid.UUID
	ListingID     *uuid.UUID
	Status        DeliveryStatus
	Attempts      int
	LastAttemptAt *time.Time
	NextAttemptAt time.Time
	DeliveredAt   *time.Time
	CreatedAt     time.Time
}
