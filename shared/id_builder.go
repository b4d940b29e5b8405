package shared

import (
	"fmt"
	"strings"
	"time"

	"github.com/spaolacci/murmur3"
)

const ActivityPublic = "https://www.w3.org/ns/activitystreams#Public"

// Post types published by location actors.
const (
	PostForecastMorning = "forecast-morning"
	PostForecastNoon    = "forecast-noon"
	PostForecastEvening = "forecast-evening"
	PostAlert           = "alert"
)

// Canonical URL kinds understood by CanonicalUrl.
const (
	KindActor      = "actor"
	KindPost       = "post"
	KindActivity   = "activity"
	KindCollection = "collection"
)

// Fixed slot hours per forecast type. The hour comes from the type, never
// from the clock value of the invocation, so a late trigger still yields
// the same post ID.
var slotHours = map[string]int{
	PostForecastMorning: 7,
	PostForecastNoon:    12,
	PostForecastEvening: 19,
}

// SlotHour returns the fixed hour of a forecast post type, or -1 if the
// type has no slot.
func SlotHour(postType string) int {
	if h, ok := slotHours[postType]; ok {
		return h
	}
	return -1
}

// ActorId derives an actor handle from a location name: lower-case, with
// everything outside [a-z0-9] stripped. Idempotent by construction.
func ActorId(locationName string) string {
	var sb strings.Builder
	for _, c := range strings.ToLower(locationName) {
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

// SanitizeToken turns an arbitrary identifier into a URL-safe token.
// Runs outside [a-z0-9] collapse into single dashes. When sanitization
// loses information (or eats the whole string), a murmur3 hash of the
// original is appended so that distinct inputs keep distinct tokens.
func SanitizeToken(raw string) string {
	var sb strings.Builder
	prevDash := true // no leading dash
	for _, c := range strings.ToLower(raw) {
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' {
			sb.WriteRune(c)
			prevDash = false
		} else if !prevDash {
			sb.WriteByte('-')
			prevDash = true
		}
	}
	token := strings.TrimRight(sb.String(), "-")
	if token == strings.ToLower(raw) {
		return token
	}
	hash := fmt.Sprintf("%08x", murmur3.Sum32([]byte(raw)))
	if token == "" {
		return hash
	}
	return token + "-" + hash
}

// PostId derives the deterministic identifier of a post. For forecast
// types the date comes from slotTime truncated to a day and the hour is
// fixed by the type; for alerts the identity is the sanitized alert ID.
// Same logical input always yields the same ID.
func PostId(locationId string, slotTime time.Time, postType, alertId string) string {
	if postType == PostAlert {
		return fmt.Sprintf("%s-alert-%s", locationId, SanitizeToken(alertId))
	}
	day := slotTime.UTC().Format("20060102")
	hour := slotHours[postType]
	return fmt.Sprintf("%s-%s-%s-%02d", locationId, postType, day, hour)
}

// CreateActivityId is the identifier of the Create wrapping a post.
func CreateActivityId(postId string) string {
	return postId + "-create"
}

type IdBuilder struct {
	Host string
}

func (idb *IdBuilder) SiteUrl() string {
	return fmt.Sprintf("https://%s", idb.Host)
}

func (idb *IdBuilder) SharedInbox() string {
	return fmt.Sprintf("https://%s/inbox", idb.Host)
}

func (idb *IdBuilder) ActorUrl(locationId string) string {
	return fmt.Sprintf("https://%s/locations/%s", idb.Host, locationId)
}

func (idb *IdBuilder) ActorKeyId(locationId string) string {
	return fmt.Sprintf("https://%s/locations/%s#main-key", idb.Host, locationId)
}

func (idb *IdBuilder) ActorInbox(locationId string) string {
	return fmt.Sprintf("https://%s/locations/%s/inbox", idb.Host, locationId)
}

func (idb *IdBuilder) ActorOutbox(locationId string) string {
	return fmt.Sprintf("https://%s/locations/%s/outbox", idb.Host, locationId)
}

func (idb *IdBuilder) ActorFollowers(locationId string) string {
	return fmt.Sprintf("https://%s/locations/%s/followers", idb.Host, locationId)
}

func (idb *IdBuilder) ActorFollowing(locationId string) string {
	return fmt.Sprintf("https://%s/locations/%s/following", idb.Host, locationId)
}

func (idb *IdBuilder) PostUrl(postId string) string {
	return fmt.Sprintf("https://%s/posts/%s", idb.Host, postId)
}

func (idb *IdBuilder) ActivityUrl(activityId string) string {
	return fmt.Sprintf("https://%s/activities/%s", idb.Host, activityId)
}

func (idb *IdBuilder) TagUrl(tag string) string {
	return fmt.Sprintf("https://%s/tags/%s", idb.Host, tag)
}

// CanonicalUrl maps an object kind and ID to its public URL. Unknown
// kinds fall back to a generic /objects path.
func (idb *IdBuilder) CanonicalUrl(kind, id string) string {
	switch kind {
	case KindActor:
		return idb.ActorUrl(id)
	case KindPost:
		return idb.PostUrl(id)
	case KindActivity:
		return idb.ActivityUrl(id)
	case KindCollection:
		return fmt.Sprintf("https://%s/collections/%s", idb.Host, id)
	}
	return fmt.Sprintf("https://%s/objects/%s", idb.Host, id)
}
