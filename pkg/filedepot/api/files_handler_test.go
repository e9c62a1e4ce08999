package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filedepot/filedepot/pkg/filedepot"
	memoryrepo "github.com/filedepot/filedepot/pkg/filedepot/repo/memory"
	memorystorage "github.com/filedepot/filedepot/pkg/filedepot/storage/memory"
	"github.com/filedepot/filedepot/pkg/filedepot/urls"
)

func setupTestServer(t *testing.T, opts ...filedepot.Option) *httptest.Server {
	t.Helper()

	options := append([]filedepot.Option{
		filedepot.WithCatalog(memoryrepo.New()),
		filedepot.WithBlobStore(memorystorage.New()),
		filedepot.WithSpoolDir(t.TempDir()),
	}, opts...)

	svc, err := filedepot.New(options...)
	require.NoError(t, err)

	handler := NewFilesHandler(svc, urls.NewRouteBased("/api/v1"), 0)

	r := chi.NewRouter()
	r.Mount("/api/v1/files", handler.Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func multipartBody(t *testing.T, fieldName, fileName, mimeType, content string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(map[string][]string)
	h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, fieldName, fileName)}
	h["Content-Type"] = []string{mimeType}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func uploadFile(t *testing.T, srv *httptest.Server, fileName, mimeType, content string) FileResponse {
	t.Helper()

	body, contentType := multipartBody(t, "file", fileName, mimeType, content)
	resp, err := http.Post(srv.URL+"/api/v1/files", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var fr FileResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fr))
	return fr
}

func TestUploadFile(t *testing.T) {
	srv := setupTestServer(t)

	fr := uploadFile(t, srv, "report.pdf", "application/pdf", "pdf bytes here")

	assert.NotEmpty(t, fr.ID)
	assert.Equal(t, "report.pdf", fr.Name)
	assert.Equal(t, "application/pdf", fr.MimeType)
	assert.Equal(t, int64(len("pdf bytes here")), fr.SizeBytes)
	assert.Len(t, fr.ContentHash, 64)
	assert.Equal(t, "/api/v1/files/"+fr.ID+"/content", fr.URL)
}

func TestUploadMissingFileField(t *testing.T) {
	srv := setupTestServer(t)

	body, contentType := multipartBody(t, "attachment", "x.txt", "text/plain", "wrong field")
	resp, err := http.Post(srv.URL+"/api/v1/files", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUploadNotMultipart(t *testing.T) {
	srv := setupTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/files", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUploadTooLarge(t *testing.T) {
	srv := setupTestServer(t, filedepot.WithMaxUploadBytes(16))

	body, contentType := multipartBody(t, "file", "big.bin", "application/octet-stream", strings.Repeat("x", 64))
	resp, err := http.Post(srv.URL+"/api/v1/files", contentType, body)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestListFiles(t *testing.T) {
	srv := setupTestServer(t)

	uploadFile(t, srv, "one.txt", "text/plain", "first")
	uploadFile(t, srv, "two.txt", "text/plain", "second")

	resp, err := http.Get(srv.URL + "/api/v1/files")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var files []FileResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&files))
	assert.Len(t, files, 2)

	// limit is honored
	resp2, err := http.Get(srv.URL + "/api/v1/files?limit=1")
	require.NoError(t, err)
	defer resp2.Body.Close()

	var page []FileResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&page))
	assert.Len(t, page, 1)
}

func TestGetFileInfo(t *testing.T) {
	srv := setupTestServer(t)

	fr := uploadFile(t, srv, "info.txt", "text/plain", "metadata")

	resp, err := http.Get(srv.URL + "/api/v1/files/" + fr.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got FileResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, fr.ID, got.ID)
	assert.Equal(t, fr.ContentHash, got.ContentHash)
}

func TestGetFileInfoNotFound(t *testing.T) {
	srv := setupTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/files/00000000-0000-0000-0000-000000000000")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetFileInfoBadID(t *testing.T) {
	srv := setupTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/files/not-a-uuid")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestDownloadFile(t *testing.T) {
	srv := setupTestServer(t)

	content := "downloadable bytes"
	fr := uploadFile(t, srv, "dl.txt", "text/plain", content)

	resp, err := http.Get(srv.URL + "/api/v1/files/" + fr.ID + "/content")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "dl.txt")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestDeleteFile(t *testing.T) {
	srv := setupTestServer(t)

	fr := uploadFile(t, srv, "gone.txt", "text/plain", "delete me")

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/files/"+fr.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.True(t, result["success"])

	// Gone afterwards
	resp2, err := http.Get(srv.URL + "/api/v1/files/" + fr.ID)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestDeleteFileNotFound(t *testing.T) {
	srv := setupTestServer(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/files/00000000-0000-0000-0000-000000000000", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
