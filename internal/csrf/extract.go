package csrf

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
)

const (
	// JSONField is the token field in application/json bodies.
	JSONField = "csrfToken"
	// FormField is the token field in urlencoded and multipart bodies.
	FormField = "_csrf"

	// MaxBodyBytes caps how much of a JSON or form body is buffered to look
	// for a token.
	MaxBodyBytes = 1 << 20
	// MaxMultipartBytes caps how far into a multipart body parts are scanned.
	// Uploads whose _csrf field starts past it must send the header instead.
	MaxMultipartBytes = 32 << 20
)

// ContentKind selects the body parser used to find a token.
type ContentKind int

const (
	KindNone ContentKind = iota
	KindJSON
	KindForm
	KindMultipart
)

func (k ContentKind) String() string {
	switch k {
	case KindJSON:
		return "json"
	case KindForm:
		return "form"
	case KindMultipart:
		return "multipart"
	default:
		return "none"
	}
}

// bodyExtractor returns the token found in body, if any. Parse errors are
// reported as "not found".
type bodyExtractor func(body []byte, params map[string]string) (string, bool)

var extractors = map[ContentKind]bodyExtractor{
	KindJSON: fromJSON,
	KindForm: fromForm,
}

// kindOf classifies a Content-Type header value.
func kindOf(contentType string) (ContentKind, map[string]string) {
	if contentType == "" {
		return KindNone, nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return KindNone, nil
	}
	switch {
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"):
		return KindJSON, params
	case mediaType == "application/x-www-form-urlencoded":
		return KindForm, params
	case mediaType == "multipart/form-data":
		return KindMultipart, params
	default:
		return KindNone, params
	}
}

// tokenFromBody looks for a token in the request body. The body is restored
// so downstream handlers can read it again.
func tokenFromBody(r *http.Request) (string, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", false
	}
	kind, params := kindOf(r.Header.Get("Content-Type"))
	if kind == KindMultipart {
		return tokenFromMultipart(r, params["boundary"])
	}
	extract, ok := extractors[kind]
	if !ok {
		return "", false
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	rest := r.Body
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(body), rest), Closer: rest}
	if err != nil || len(body) > MaxBodyBytes {
		return "", false
	}
	return extract(body, params)
}

type readCloser struct {
	io.Reader
	io.Closer
}

func fromJSON(body []byte, _ map[string]string) (string, bool) {
	var payload struct {
		Token string `json:"csrfToken"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Token == "" {
		return "", false
	}
	return payload.Token, true
}

func fromForm(body []byte, _ map[string]string) (string, bool) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return "", false
	}
	token := values.Get(FormField)
	return token, token != ""
}

// tokenFromMultipart streams parts until it reaches the token field, so a
// file part ahead of it does not count against MaxBodyBytes. Everything read
// is replayed ahead of the unread remainder.
func tokenFromMultipart(r *http.Request, boundary string) (string, bool) {
	if boundary == "" {
		return "", false
	}
	var seen bytes.Buffer
	rest := r.Body
	tee := io.TeeReader(io.LimitReader(rest, MaxMultipartBytes), &seen)
	token, ok := scanParts(multipart.NewReader(tee, boundary))
	r.Body = readCloser{Reader: io.MultiReader(&seen, rest), Closer: rest}
	return token, ok
}

func scanParts(reader *multipart.Reader) (string, bool) {
	for {
		part, err := reader.NextPart()
		if err != nil {
			return "", false
		}
		if part.FormName() != FormField || part.FileName() != "" {
			_ = part.Close()
			continue
		}
		value, err := io.ReadAll(io.LimitReader(part, 256))
		_ = part.Close()
		if err != nil || len(value) == 0 {
			return "", false
		}
		return string(value), true
	}
}
