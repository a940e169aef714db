package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strconv"
	"time"

	"github.com/example/roombooking/internal/domain"
)

// UploadField is the multipart field name carrying uploaded files.
const UploadField = "attachments"

type requestBody struct {
	contentType string
	data        []byte
}

// encodeBody renders fields as JSON, or as multipart/form-data when files are
// attached. The field set is the same in both encodings.
func encodeBody(fields map[string]any, files []domain.Upload) (*requestBody, error) {
	if len(files) == 0 {
		if fields == nil {
			fields = map[string]any{}
		}
		data, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("transport: encode json body: %w", err)
		}
		return &requestBody{contentType: "application/json", data: data}, nil
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value, ok, err := formValue(fields[key])
		if err != nil {
			return nil, fmt.Errorf("transport: encode field %q: %w", key, err)
		}
		if !ok {
			continue
		}
		if err := w.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("transport: write field %q: %w", key, err)
		}
	}

	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, UploadField, file.Name))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("transport: create file part: %w", err)
		}
		if _, err := part.Write(file.Content); err != nil {
			return nil, fmt.Errorf("transport: write file part: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("transport: close multipart body: %w", err)
	}
	return &requestBody{contentType: w.FormDataContentType(), data: buf.Bytes()}, nil
}

// formValue renders one field as a form value. Scalars are written as text;
// composite values are written as JSON. Nil values are omitted.
func formValue(value any) (string, bool, error) {
	switch v := value.(type) {
	case nil:
		return "", false, nil
	case string:
		return v, true, nil
	case domain.ID:
		if v.IsZero() {
			return "", false, nil
		}
		return v.String(), true, nil
	case bool:
		return strconv.FormatBool(v), true, nil
	case int:
		return strconv.Itoa(v), true, nil
	case int64:
		return strconv.FormatInt(v, 10), true, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true, nil
	case time.Time:
		return v.Format(time.RFC3339), true, nil
	case fmt.Stringer:
		return v.String(), true, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", false, err
		}
		var text string
		if json.Unmarshal(data, &text) == nil {
			return text, true, nil
		}
		return string(data), true, nil
	}
}
