package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/roombooking/internal/application"
	"github.com/example/roombooking/internal/domain"
	"github.com/example/roombooking/internal/transport"
)

const (
	maxDraftBody   = 1 << 20
	maxUploadBytes = 32 << 20
)

// decodeDraft reads the draft of kind from a JSON or multipart request body.
// A non-zero id overrides any id carried in the body.
func decodeDraft(r *http.Request, kind domain.Kind, id domain.ID) (application.Draft, error) {
	body, uploads, err := readDraftBody(r, kind)
	if err != nil {
		return nil, err
	}

	switch kind {
	case domain.KindMeeting:
		draft, err := unmarshalDraft[application.MeetingDraft](body)
		draft.Uploads = uploads
		draft.ID = pickID(id, draft.ID)
		return draft, err
	case domain.KindRoom:
		draft, err := unmarshalDraft[application.RoomDraft](body)
		draft.Uploads = uploads
		draft.ID = pickID(id, draft.ID)
		return draft, err
	case domain.KindUser:
		draft, err := unmarshalDraft[application.UserDraft](body)
		draft.ID = pickID(id, draft.ID)
		return draft, err
	case domain.KindAttendee:
		draft, err := unmarshalDraft[application.AttendeeDraft](body)
		draft.ID = pickID(id, draft.ID)
		return draft, err
	case domain.KindMinutes:
		draft, err := unmarshalDraft[application.MinutesDraft](body)
		draft.Uploads = uploads
		draft.ID = pickID(id, draft.ID)
		return draft, err
	case domain.KindActionItem:
		draft, err := unmarshalDraft[application.ActionItemDraft](body)
		draft.ID = pickID(id, draft.ID)
		return draft, err
	default:
		return nil, fmt.Errorf("%w: %q", application.ErrUnknownKind, kind)
	}
}

func unmarshalDraft[T any](body []byte) (T, error) {
	var draft T
	if len(bytes.TrimSpace(body)) == 0 {
		return draft, errBadRequestBody
	}
	if err := json.Unmarshal(body, &draft); err != nil {
		return draft, fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	return draft, nil
}

func pickID(path, body domain.ID) domain.ID {
	if !path.IsZero() {
		return path
	}
	return body
}

// readDraftBody returns the draft as JSON. Multipart form values are
// converted to the same JSON document a JSON client would send.
func readDraftBody(r *http.Request, kind domain.Kind) ([]byte, []domain.Upload, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxDraftBody))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", errBadRequestBody, err)
		}
		return body, nil, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	doc, err := formDocument(kind, r.MultipartForm.Value)
	if err != nil {
		return nil, nil, err
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errBadRequestBody, err)
	}
	uploads, err := readUploads(r.MultipartForm.File[transport.UploadField])
	if err != nil {
		return nil, nil, err
	}
	return body, uploads, nil
}

// formDocument maps form values onto draft fields. Numeric fields and the
// nested action item list need typed values; everything else stays a string.
func formDocument(kind domain.Kind, values map[string][]string) (map[string]any, error) {
	doc := make(map[string]any, len(values))
	for key, list := range values {
		if len(list) == 0 {
			continue
		}
		value := strings.TrimSpace(list[len(list)-1])
		switch {
		case kind == domain.KindRoom && key == "capacity":
			if value == "" {
				continue
			}
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%w: capacity must be a whole number", errBadRequestBody)
			}
			doc[key] = n
		case kind == domain.KindRoom && key == "features":
			ids, err := formFeatureIDs(list)
			if err != nil {
				return nil, err
			}
			doc[key] = ids
		case kind == domain.KindMinutes && key == "action_items":
			if value == "" {
				continue
			}
			doc[key] = json.RawMessage(value)
		default:
			doc[key] = value
		}
	}
	return doc, nil
}

// formFeatureIDs accepts repeated fields and comma separated lists alike.
func formFeatureIDs(list []string) ([]int64, error) {
	ids := make([]int64, 0, len(list))
	for _, entry := range list {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: feature %q is not an id", errBadRequestBody, part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func readUploads(headers []*multipart.FileHeader) ([]domain.Upload, error) {
	uploads := make([]domain.Upload, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", errBadRequestBody, header.Filename, err)
		}
		content, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", errBadRequestBody, header.Filename, err)
		}
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = http.DetectContentType(content)
		}
		uploads = append(uploads, domain.Upload{Name: header.Filename, ContentType: contentType, Content: content})
	}
	return uploads, nil
}
