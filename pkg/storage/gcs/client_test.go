package gcs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/acari-app/acari-backend/pkg/config"
)

// fakeStorage points a Client at an httptest server standing in for the
// Cloud Storage JSON API.
func fakeStorage(t *testing.T, cfg config.GCSConfig, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := newClient(context.Background(), cfg,
		option.WithEndpoint(srv.URL+"/storage/v1/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return client
}

func TestUploadReturnsPublicURL(t *testing.T) {
	var gotPath, gotBody string
	client := fakeStorage(t, config.GCSConfig{BucketName: "acari-assets", PublicBaseURL: "https://cdn.acari.app/"},
		func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			body, _ := io.ReadAll(r.Body)
			gotBody = string(body)
			_, _ = io.WriteString(w, `{"name":"qrcodes/u1/a1.png","bucket":"acari-assets"}`)
		})

	url, err := client.Upload(context.Background(), "/qrcodes/u1/a1.png", "image/png", []byte("png-bytes"))

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.acari.app/acari-assets/qrcodes/u1/a1.png", url)
	assert.Equal(t, "/upload/storage/v1/b/acari-assets/o", gotPath)
	assert.Contains(t, gotBody, "png-bytes")
	assert.Contains(t, gotBody, `"name":"qrcodes/u1/a1.png"`)
}

func TestUploadSurfacesProviderError(t *testing.T) {
	client := fakeStorage(t, config.GCSConfig{BucketName: "acari-assets"}, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"denied"}}`, http.StatusForbidden)
	})

	_, err := client.Upload(context.Background(), "x.png", "image/png", nil)
	assert.ErrorContains(t, err, "denied")

	_, err = client.Upload(context.Background(), "", "image/png", nil)
	assert.ErrorContains(t, err, "object name is required")
}

func TestDeleteObjectTreatsMissingAsDeleted(t *testing.T) {
	status := http.StatusNoContent
	var gotMethod, gotPath string
	client := fakeStorage(t, config.GCSConfig{BucketName: "bucket"}, func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(status)
	})

	require.NoError(t, client.DeleteObject(context.Background(), "", "logos/file.png"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.True(t, strings.HasPrefix(gotPath, "/storage/v1/b/bucket/o/"), gotPath)

	status = http.StatusNotFound
	assert.NoError(t, client.DeleteObject(context.Background(), "other", "logos/file.png"))

	status = http.StatusBadRequest
	assert.Error(t, client.DeleteObject(context.Background(), "", "logos/file.png"))
}

func TestPingListsOneObject(t *testing.T) {
	var query string
	client := fakeStorage(t, config.GCSConfig{BucketName: "acari-assets"}, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("maxResults")
		_, _ = io.WriteString(w, `{"items":[]}`)
	})

	require.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "1", query)

	var nilClient *Client
	assert.ErrorIs(t, nilClient.Ping(context.Background()), errNotReady)
}

func TestPublicURLDefaultsToStorageHost(t *testing.T) {
	client := &Client{bucket: "bucket"}
	assert.Equal(t, "https://storage.googleapis.com/bucket/a/b.png", client.PublicURL("a/b.png"))
}

func TestConfigAndCredentialErrors(t *testing.T) {
	_, err := newClient(context.Background(), config.GCSConfig{})
	assert.Error(t, err)

	_, err = credentials(context.Background(), config.GCPConfig{CredentialsJSON: "{not json"})
	assert.Error(t, err)
	_, err = credentials(context.Background(), config.GCPConfig{ApplicationCredentials: "/nonexistent/key.json"})
	assert.Error(t, err)
}
