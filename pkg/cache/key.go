package cache

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownKey is returned by ParseKey for strings no constructor produces.
var ErrUnknownKey = errors.New("unknown cache key")

// Key identifies one cached value. Keys are only built by the constructors in
// this file so every caller agrees on the stored string format. Formats must
// stay stable across releases or previously cached data is orphaned.
type Key struct {
	s string
}

// String returns the unprefixed key, e.g. "job:42".
func (k Key) String() string { return k.s }

// IsZero reports whether k was never constructed.
func (k Key) IsZero() bool { return k.s == "" }

// Collection keys.
var (
	Jobs         = Key{"jobs"}
	Conferences  = Key{"conferences"}
	Scholarships = Key{"scholarships"}
	Vendors      = Key{"vendors"}
	Powwows      = Key{"powwows"}
	LiveStreams  = Key{"liveStreams"}
)

var staticKeys = map[string]Key{
	Jobs.s:         Jobs,
	Conferences.s:  Conferences,
	Scholarships.s: Scholarships,
	Vendors.s:      Vendors,
	Powwows.s:      Powwows,
	LiveStreams.s:  LiveStreams,
}

// Entity and per-user key kinds.
const (
	kindJob           = "job"
	kindConference    = "conference"
	kindScholarship   = "scholarship"
	kindVendor        = "vendor"
	kindPowwow        = "powwow"
	kindUser          = "user"
	kindSavedJobs     = "savedJobs"
	kindApplications  = "applications"
	kindJobAlerts     = "jobAlerts"
	kindConversations = "conversations"
	kindNotifications = "notifications"
	kindMessages      = "messages"
)

var parametricKinds = map[string]bool{
	kindJob:           true,
	kindConference:    true,
	kindScholarship:   true,
	kindVendor:        true,
	kindPowwow:        true,
	kindUser:          true,
	kindSavedJobs:     true,
	kindApplications:  true,
	kindJobAlerts:     true,
	kindConversations: true,
	kindNotifications: true,
	kindMessages:      true,
}

func param(kind, id string) Key { return Key{kind + ":" + id} }

// JobKey is a single job posting.
func JobKey(id string) Key { return param(kindJob, id) }

// ConferenceKey is a single conference.
func ConferenceKey(id string) Key { return param(kindConference, id) }

// ScholarshipKey is a single scholarship.
func ScholarshipKey(id string) Key { return param(kindScholarship, id) }

// VendorKey is a single vendor profile.
func VendorKey(id string) Key { return param(kindVendor, id) }

// PowwowKey is a single powwow event.
func PowwowKey(id string) Key { return param(kindPowwow, id) }

// UserKey is a member profile.
func UserKey(id string) Key { return param(kindUser, id) }

// SavedJobsKey is the set of jobs a member has saved.
func SavedJobsKey(userID string) Key { return param(kindSavedJobs, userID) }

// ApplicationsKey is a member's job applications.
func ApplicationsKey(userID string) Key { return param(kindApplications, userID) }

// JobAlertsKey is a member's job alert subscriptions.
func JobAlertsKey(userID string) Key { return param(kindJobAlerts, userID) }

// ConversationsKey is a member's conversation list.
func ConversationsKey(userID string) Key { return param(kindConversations, userID) }

// NotificationsKey is a member's notification feed.
func NotificationsKey(userID string) Key { return param(kindNotifications, userID) }

// MessagesKey is the thread of a single conversation.
func MessagesKey(conversationID string) Key { return param(kindMessages, conversationID) }

// ParseKey converts an unprefixed key string back into a Key. Only strings
// produced by one of the constructors are accepted.
func ParseKey(s string) (Key, error) {
	if k, ok := staticKeys[s]; ok {
		return k, nil
	}
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" || !parametricKinds[kind] {
		return Key{}, fmt.Errorf("%w: %q", ErrUnknownKey, s)
	}
	return Key{s}, nil
}
