package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"devshelf/internal/models"
	"devshelf/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func multipartUpload(t *testing.T, field, filename string, content []byte, token string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads/image", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestUploadImage(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, testutil.CreateUser(t, ts.db, "alice"))

	status, body := ts.send(t, multipartUpload(t, "file", "cover.png", testutil.TinyPNG(t, 40, 20), token))
	require.Equal(t, http.StatusCreated, status, body)

	url := gjson.Get(body, "url").String()
	key := gjson.Get(body, "key").String()
	assert.True(t, strings.HasPrefix(url, "/uploads/images/"), url)
	assert.True(t, strings.HasSuffix(key, ".webp"), key)
	assert.Equal(t, int64(40), gjson.Get(body, "width").Int())
	assert.Equal(t, int64(20), gjson.Get(body, "height").Int())

	_, err := os.Stat(filepath.Join(ts.srv.config.UploadDir, filepath.FromSlash(key)))
	assert.NoError(t, err)

	// The local backend serves what it stored.
	status, _ = ts.do(t, http.MethodGet, url, nil, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestUploadImage_Rejects(t *testing.T) {
	ts := newTestServer(t)
	token := ts.tokenFor(t, testutil.CreateUser(t, ts.db, "alice"))

	tests := []struct {
		name    string
		field   string
		file    string
		content []byte
		token   string
		status  int
	}{
		{"unauthenticated", "file", "a.png", testutil.TinyPNG(t, 4, 4), "", http.StatusUnauthorized},
		{"wrong field", "image", "a.png", testutil.TinyPNG(t, 4, 4), token, http.StatusBadRequest},
		{"not an image", "file", "notes.png", []byte("just some text pretending to be a png"), token, http.StatusBadRequest},
		{"too large", "file", "huge.png", bytes.Repeat([]byte{0x89}, 3<<20), token, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ts.send(t, multipartUpload(t, tt.field, tt.file, tt.content, tt.token))
			assert.Equal(t, tt.status, status)
			if tt.status == http.StatusBadRequest {
				assert.Equal(t, models.CodeValidation, gjson.Get(body, "code").String())
			}
		})
	}
}
