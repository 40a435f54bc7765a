package fileserver

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

func TestMatchMagic(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	assert.True(t, matchMagic(".jpg", jpeg))
	assert.True(t, matchMagic(".jpeg", jpeg))
	assert.False(t, matchMagic(".jpg", pngHeader))

	assert.True(t, matchMagic(".png", pngHeader))
	assert.False(t, matchMagic(".png", jpeg))

	assert.True(t, matchMagic(".gif", []byte("GIF89a......")))
	assert.True(t, matchMagic(".pdf", []byte("%PDF-1.7")))
	assert.False(t, matchMagic(".pdf", []byte("not a pdf")))

	// Unknown extensions pass through; only known ones are checked.
	assert.True(t, matchMagic(".zip", []byte("anything")))
	assert.True(t, matchMagic(".txt", []byte("plain text")))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", safeFilename("report.pdf"))
	assert.Equal(t, "report.pdf", safeFilename(`re"po\rt/.pdf`))
	assert.Equal(t, "отчёт.pdf", safeFilename("отчёт.pdf"), "UTF-8 names survive")
	assert.Equal(t, "", safeFilename("  \r\n  "))
}

func TestASCIIFallbackFilename(t *testing.T) {
	assert.Equal(t, "report.pdf", asciiFallbackFilename("report.pdf"))
	assert.Equal(t, "my_report.pdf", asciiFallbackFilename("my report.pdf"))
	assert.Equal(t, "______.pdf", asciiFallbackFilename("отчёт?.pdf"))
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestUploadAndServe(t *testing.T) {
	svc := New(t.TempDir(), 1<<20)

	content := append(append([]byte{}, pngHeader...), []byte("fake image body")...)
	w := httptest.NewRecorder()
	svc.Upload(w, uploadRequest(t, "avatar.png", content))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "image", resp.ContentType)
	assert.Equal(t, "avatar.png", resp.FileName)
	assert.Contains(t, resp.URL, "/api/files/")

	// Stored gzipped, served back decompressed and byte-identical.
	stored := resp.URL[len("/api/files/"):]
	sw := httptest.NewRecorder()
	svc.Serve(sw, httptest.NewRequest(http.MethodGet, "/files/"+stored, nil), stored)
	require.Equal(t, http.StatusOK, sw.Code)
	served, err := io.ReadAll(sw.Body)
	require.NoError(t, err)
	assert.Equal(t, content, served)
	assert.Equal(t, "image/png", sw.Header().Get("Content-Type"))
}

func TestUploadRejectsBlockedExtension(t *testing.T) {
	svc := New(t.TempDir(), 1<<20)
	w := httptest.NewRecorder()
	svc.Upload(w, uploadRequest(t, "payload.exe", []byte("MZ....")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadRejectsMismatchedMagic(t *testing.T) {
	svc := New(t.TempDir(), 1<<20)
	w := httptest.NewRecorder()
	svc.Upload(w, uploadRequest(t, "photo.png", []byte("definitely not a png")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServeMissingFile(t *testing.T) {
	svc := New(t.TempDir(), 1<<20)
	w := httptest.NewRecorder()
	svc.Serve(w, httptest.NewRequest(http.MethodGet, "/files/nope.png", nil), "nope.png")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
