// Package http exposes the booking cache, its projections and the
// reconciliation controller over a JSON API.
//
// The router serves the following endpoints:
//   - GET /{plural}: filtered list of a cached collection. Rooms accept q,
//     status, min_capacity and features; meetings accept q, status, date,
//     room_id and sort; users accept q and role; action items accept q,
//     status, assigned_to, meeting_id and minutes_id. The response carries
//     the fetch state of the collection next to its items.
//   - GET /{plural}/{id}: one cached entity.
//   - GET /features: the cached feature catalog, or the built-in catalog when
//     nothing has been fetched.
//   - GET /meetings/{id}/attendees: the roster of one meeting.
//   - GET /meetings.ics: the filtered meetings as an iCalendar feed.
//   - POST /meetings/validate: validates a meeting draft without submitting it.
//   - POST /refresh/{kind}: fetches one kind. force=true supersedes an
//     in-flight fetch instead of joining it.
//   - POST /{plural}, PUT /{plural}/{id}, DELETE /{plural}/{id}: submit a
//     mutation. Drafts arrive as JSON or multipart/form-data with files under
//     the "attachments" field.
//   - GET /events: websocket stream of {"kind","event"} change notifications.
//   - GET /metrics and GET /healthz.
//
// Draft payloads are the application draft types; responses are the domain
// entities and the controller outcomes.
package http
