// Package domain defines the canonical in-memory model shared by the normalizer,
// the cache store, the booking validator and the reconciliation controller.
package domain

import "strings"

// Kind identifies an entity collection.
type Kind string

const (
	KindRoom       Kind = "room"
	KindFeature    Kind = "feature"
	KindUser       Kind = "user"
	KindMeeting    Kind = "meeting"
	KindAttendee   Kind = "attendee"
	KindMinutes    Kind = "minutes"
	KindActionItem Kind = "action_item"
)

var allKinds = []Kind{
	KindRoom,
	KindFeature,
	KindUser,
	KindMeeting,
	KindAttendee,
	KindMinutes,
	KindActionItem,
}

// Kinds returns every known entity kind in a fixed order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range allKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Plural returns the collection name used in URLs and response envelopes.
func (k Kind) Plural() string {
	switch k {
	case KindMinutes:
		return "minutes"
	case KindActionItem:
		return "action_items"
	default:
		return string(k) + "s"
	}
}

// EnvelopeKeys lists the object keys that may wrap a collection of this kind,
// in the order they are tried.
func (k Kind) EnvelopeKeys() []string {
	plural := k.Plural()
	if camel := camelCase(plural); camel != plural {
		return []string{plural, camel}
	}
	return []string{plural}
}

// IDAliases lists the field names that may carry the entity id, in priority order.
func (k Kind) IDAliases() []string {
	base := string(k)
	aliases := []string{"id", "Id", base + "_id", camelCase(base) + "Id"}
	if k == KindMinutes {
		aliases = append(aliases, "minute_id", "minuteId")
	}
	return aliases
}

// ParseKind resolves singular, plural, camelCase and hyphenated spellings of a kind.
func ParseKind(value string) (Kind, bool) {
	key := strings.ToLower(strings.TrimSpace(value))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.TrimPrefix(key, "meeting_")
	if key == "" {
		return "", false
	}
	for _, kind := range allKinds {
		if key == string(kind) || key == kind.Plural() || key == strings.ToLower(camelCase(string(kind))) || key == strings.ToLower(camelCase(kind.Plural())) {
			return kind, true
		}
	}
	if key == "minute" {
		return KindMinutes, true
	}
	return "", false
}

func camelCase(snake string) string {
	parts := strings.Split(snake, "_")
	if len(parts) == 1 {
		return snake
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}
