package mqtt

import (
	"fmt"
	"strconv"
)

// TopicRoot is the first level of every Neogend topic.
const TopicRoot = "neogend"

// globalSegment replaces the account id on topics for revoke-all events.
const globalSegment = "all"

// Topics builds Neogend topic names. Site scopes every topic so several
// communities can share one broker; an empty Site uses the bare root.
//
//	topics := mqtt.Topics{Site: "fr-1"}
//	topics.SessionRevoked(42) // "neogend/fr-1/sessions/revoked/42"
type Topics struct {
	Site string
}

func (t Topics) prefix() string {
	if t.Site == "" {
		return TopicRoot
	}
	return TopicRoot + "/" + t.Site
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: neogend/fr-1/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// SessionRevoked returns the topic for a version bump of one account.
// accountID 0 yields the revoke-all topic.
//
// Example: neogend/fr-1/sessions/revoked/42
func (t Topics) SessionRevoked(accountID int64) string {
	seg := globalSegment
	if accountID != 0 {
		seg = strconv.FormatInt(accountID, 10)
	}
	return fmt.Sprintf("%s/sessions/revoked/%s", t.prefix(), seg)
}

// AllSessionRevocations matches every revocation topic of the site.
//
// Pattern: neogend/fr-1/sessions/revoked/+
func (t Topics) AllSessionRevocations() string {
	return fmt.Sprintf("%s/sessions/revoked/+", t.prefix())
}
