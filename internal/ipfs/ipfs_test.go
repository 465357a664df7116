package ipfs

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFile(t *testing.T) {
	p := NewProxy(10)

	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  string
	}{
		{"allowed image", "photo.png", 1024, ""},
		{"allowed uppercase", "REPORT.PDF", 1024, ""},
		{"too large", "photo.png", 11 * 1024 * 1024, "too large"},
		{"blocked executable", "payload.exe", 10, "blocked"},
		{"blocked script", "script.py", 10, "blocked"},
		{"unknown type", "archive.tar", 10, "not allowed"},
		{"no extension", "README", 10, "not allowed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := p.ValidateFile(tc.filename, tc.size)
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestUpload_DeterministicCID(t *testing.T) {
	p := NewProxy(10)

	a := p.Upload("a.txt", []byte("hello"))
	b := p.Upload("b.txt", []byte("hello"))
	c := p.Upload("c.txt", []byte("other"))

	assert.Equal(t, a.CID, b.CID, "same content, same CID")
	assert.NotEqual(t, a.CID, c.CID)
	assert.True(t, strings.HasPrefix(a.CID, "bafybeif"))
	assert.Contains(t, a.URL, a.CID)
	assert.Equal(t, int64(5), a.Size)
	assert.True(t, a.Mock)
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestUploadEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewProxy(10)).RegisterRoutes(r.Group("/v1"))

	body, contentType := multipartBody(t, "report.json", []byte(`{"ok":true}`))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/ipfs/upload", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result UploadResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, strings.HasPrefix(result.CID, "bafybeif"))
	assert.True(t, result.Mock)
}

func TestUploadEndpoint_Rejections(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(NewProxy(10)).RegisterRoutes(r.Group("/v1"))

	// Blocked extension.
	body, contentType := multipartBody(t, "evil.exe", []byte("MZ"))
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/ipfs/upload", body)
	req.Header.Set("Content-Type", contentType)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing file field.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/ipfs/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
