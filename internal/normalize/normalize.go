// Package normalize converts the inconsistently shaped payloads returned by the
// booking backend into canonical domain entities.
//
// A payload is tried against a closed set of response shapes in a fixed order:
// a bare array, an object whose "data" member is an array, and an object keyed
// by the plural of the requested kind. The first shape that yields an array
// wins. Payloads matching none of them produce an empty, unmatched Result
// rather than an error so that one bad response never aborts a refresh cycle.
package normalize

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/example/roombooking/internal/domain"
)

// Shape identifies which response envelope a payload matched.
type Shape string

const (
	ShapeUnrecognized Shape = "unrecognized"
	ShapeBareArray    Shape = "bare_array"
	ShapeDataEnvelope Shape = "data_envelope"
	ShapeKindEnvelope Shape = "kind_envelope"
)

// Result is the outcome of normalizing one payload.
type Result struct {
	Kind     domain.Kind
	Shape    Shape
	Entities []domain.Entity
	// Skipped counts array elements that were not objects or carried no id.
	Skipped int
}

// Matched reports whether the payload matched a known response shape. A
// matched payload may still hold zero entities.
func (r Result) Matched() bool {
	return r.Shape != ShapeUnrecognized
}

// Normalizer converts payloads using a fixed location for zone-less timestamps.
type Normalizer struct {
	loc *time.Location
}

// New returns a Normalizer that reads zone-less timestamps in loc. A nil loc
// means UTC.
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc}
}

var defaultNormalizer = New(time.UTC)

// Normalize decodes raw and normalizes it as a collection of kind, reading
// zone-less timestamps as UTC.
func Normalize(raw []byte, kind domain.Kind) Result {
	return defaultNormalizer.Normalize(raw, kind)
}

// NormalizeValue normalizes an already decoded JSON value.
func NormalizeValue(value any, kind domain.Kind) Result {
	return defaultNormalizer.NormalizeValue(value, kind)
}

// Location returns the location used for zone-less timestamps.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Normalize decodes raw and normalizes it as a collection of kind. Undecodable
// input is reported as an unrecognized shape.
func (n *Normalizer) Normalize(raw []byte, kind domain.Kind) Result {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return Result{Kind: kind, Shape: ShapeUnrecognized}
	}
	return n.NormalizeValue(value, kind)
}

// NormalizeValue normalizes an already decoded JSON value. Numbers may be
// json.Number or float64.
func (n *Normalizer) NormalizeValue(value any, kind domain.Kind) Result {
	result := Result{Kind: kind, Shape: ShapeUnrecognized}
	if !kind.Valid() {
		return result
	}
	items, shape := extract(value, kind)
	result.Shape = shape
	if shape == ShapeUnrecognized {
		return result
	}
	result.Entities = make([]domain.Entity, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			result.Skipped++
			continue
		}
		entity, ok := n.entity(record(obj), kind)
		if !ok {
			result.Skipped++
			continue
		}
		result.Entities = append(result.Entities, entity)
	}
	if kind == domain.KindUser {
		resolveRoles(result.Entities)
	}
	return result
}

func extract(value any, kind domain.Kind) ([]any, Shape) {
	if items, ok := value.([]any); ok {
		return items, ShapeBareArray
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, ShapeUnrecognized
	}
	if items, ok := obj["data"].([]any); ok {
		return items, ShapeDataEnvelope
	}
	for _, key := range kind.EnvelopeKeys() {
		if items, ok := obj[key].([]any); ok {
			return items, ShapeKindEnvelope
		}
	}
	return nil, ShapeUnrecognized
}

func (n *Normalizer) entity(r record, kind domain.Kind) (domain.Entity, bool) {
	id := r.id(kind, kind.IDAliases()...)
	if id.IsZero() {
		return nil, false
	}
	switch kind {
	case domain.KindRoom:
		return n.room(id, r), true
	case domain.KindFeature:
		return feature(id, r), true
	case domain.KindUser:
		return user(id, r), true
	case domain.KindMeeting:
		return n.meeting(id, r), true
	case domain.KindAttendee:
		return attendee(id, "", r), true
	case domain.KindMinutes:
		return n.minutes(id, r), true
	case domain.KindActionItem:
		return n.actionItem(id, "", "", r), true
	default:
		return nil, false
	}
}

// Rooms narrows a result to rooms.
func Rooms(entities []domain.Entity) []domain.Room {
	return collect[domain.Room](entities)
}

// Users narrows a result to users.
func Users(entities []domain.Entity) []domain.User {
	return collect[domain.User](entities)
}

// Meetings narrows a result to meetings.
func Meetings(entities []domain.Entity) []domain.Meeting {
	return collect[domain.Meeting](entities)
}

func collect[T domain.Entity](entities []domain.Entity) []T {
	out := make([]T, 0, len(entities))
	for _, entity := range entities {
		if typed, ok := entity.(T); ok {
			out = append(out, typed)
		}
	}
	return out
}
