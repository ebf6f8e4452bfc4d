package csrf

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		contentType string
		want        ContentKind
	}{
		{"", KindNone},
		{"application/json", KindJSON},
		{"application/json; charset=utf-8", KindJSON},
		{"application/merge-patch+json", KindJSON},
		{"application/x-www-form-urlencoded", KindForm},
		{"multipart/form-data; boundary=xyz", KindMultipart},
		{"text/plain", KindNone},
		{"this is not a media type;;;", KindNone},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			got, _ := kindOf(tt.contentType)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got.String())
		})
	}
}

func newBodyRequest(contentType, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	return req
}

func multipartBody(t *testing.T, fields map[string]string) (string, string) {
	t.Helper()
	return multipartUpload(t, []byte("\x89PNG"), fields)
}

// multipartUpload writes a file part followed by fields.
func multipartUpload(t *testing.T, file []byte, fields map[string]string) (string, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("avatar", "me.png")
	require.NoError(t, err)
	_, err = fw.Write(file)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return w.FormDataContentType(), buf.String()
}

func TestTokenFromBody(t *testing.T) {
	t.Run("json field", func(t *testing.T) {
		req := newBodyRequest("application/json", `{"title":"hi","csrfToken":"abc"}`)
		token, ok := tokenFromBody(req)
		assert.True(t, ok)
		assert.Equal(t, "abc", token)
	})

	t.Run("form field", func(t *testing.T) {
		req := newBodyRequest("application/x-www-form-urlencoded", "title=hi&_csrf=abc")
		token, ok := tokenFromBody(req)
		assert.True(t, ok)
		assert.Equal(t, "abc", token)
	})

	t.Run("multipart field after a file part", func(t *testing.T) {
		contentType, body := multipartBody(t, map[string]string{"_csrf": "abc"})
		token, ok := tokenFromBody(newBodyRequest(contentType, body))
		assert.True(t, ok)
		assert.Equal(t, "abc", token)
	})

	t.Run("multipart field after a file larger than the buffer cap", func(t *testing.T) {
		contentType, body := multipartUpload(t, bytes.Repeat([]byte{0xAB}, 2*MaxBodyBytes), map[string]string{"_csrf": "abc"})
		req := newBodyRequest(contentType, body)
		token, ok := tokenFromBody(req)
		assert.True(t, ok)
		assert.Equal(t, "abc", token)

		restored, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, body, string(restored))
	})

	t.Run("json field name does not apply to forms", func(t *testing.T) {
		_, ok := tokenFromBody(newBodyRequest("application/x-www-form-urlencoded", "csrfToken=abc"))
		assert.False(t, ok)
	})

	t.Run("malformed bodies yield no token", func(t *testing.T) {
		for _, req := range []*http.Request{
			newBodyRequest("application/json", `{"csrfToken":`),
			newBodyRequest("application/x-www-form-urlencoded", "%zz"),
			newBodyRequest("multipart/form-data; boundary=nope", "garbage"),
			newBodyRequest("multipart/form-data", "no boundary"),
			newBodyRequest("text/plain", "_csrf=abc"),
		} {
			_, ok := tokenFromBody(req)
			assert.False(t, ok, req.Header.Get("Content-Type"))
		}
	})

	t.Run("body is restored for the handler", func(t *testing.T) {
		body := `{"title":"hi","csrfToken":"abc"}`
		req := newBodyRequest("application/json", body)
		_, _ = tokenFromBody(req)

		restored, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, body, string(restored))
	})

	t.Run("oversized body is not parsed but is restored", func(t *testing.T) {
		body := `{"csrfToken":"abc","pad":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
		req := newBodyRequest("application/json", body)
		_, ok := tokenFromBody(req)
		assert.False(t, ok)

		restored, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Len(t, restored, len(body))
	})
}
