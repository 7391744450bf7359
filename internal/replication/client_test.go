package replication

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{User: "developer", Password: "s3cr3t"}

func mockClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	transport := httpmock.NewMockTransport()
	c, err := NewClient(testCreds, WithTransport(transport))
	require.NoError(t, err)
	return c, transport
}

func TestNewClient_TLSDefaults(t *testing.T) {
	c, err := NewClient(testCreds, WithTimeout(5*time.Second))
	require.NoError(t, err)

	tlsConf := c.TLSConfig()
	require.NotNil(t, tlsConf)
	assert.True(t, tlsConf.InsecureSkipVerify)
	assert.NotZero(t, tlsConf.MinVersion)
	assert.Equal(t, 5*time.Second, c.http.Timeout)
}

func TestClient_TakeOffline(t *testing.T) {
	c, transport := mockClient(t)

	transport.RegisterResponderWithQuery(http.MethodPost,
		"https://infinispan-b.example.com/rest/v2/container/x-site/backups/site-b",
		"action=take-offline",
		func(req *http.Request) (*http.Response, error) {
			user, pass, ok := req.BasicAuth()
			if !ok || user != "developer" || pass != "s3cr3t" {
				return httpmock.NewStringResponse(http.StatusUnauthorized, ""), nil
			}
			return httpmock.NewStringResponse(http.StatusNoContent, ""), nil
		},
	)

	err := c.TakeOffline(context.Background(), "infinispan-b.example.com", "site-b")
	require.NoError(t, err)
	assert.Equal(t, 1, transport.GetTotalCallCount())
}

func TestClient_TakeOffline_Failures(t *testing.T) {
	t.Run("non 2xx", func(t *testing.T) {
		c, transport := mockClient(t)
		transport.RegisterResponderWithQuery(http.MethodPost,
			"https://infinispan-b.example.com/rest/v2/container/x-site/backups/site-b",
			"action=take-offline",
			httpmock.NewStringResponder(http.StatusNotFound, "no such site"))

		err := c.TakeOffline(context.Background(), "infinispan-b.example.com", "site-b")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrOfflineFailed)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("network error", func(t *testing.T) {
		c, transport := mockClient(t)
		refused := errors.New("connection refused")
		transport.RegisterResponderWithQuery(http.MethodPost,
			"https://infinispan-b.example.com/rest/v2/container/x-site/backups/site-b",
			"action=take-offline",
			httpmock.NewErrorResponder(refused))

		err := c.TakeOffline(context.Background(), "infinispan-b.example.com", "site-b")
		assert.ErrorIs(t, err, ErrOfflineFailed)
		assert.ErrorIs(t, err, refused)
	})

	t.Run("empty endpoint", func(t *testing.T) {
		c, transport := mockClient(t)
		err := c.TakeOffline(context.Background(), "", "site-b")
		assert.ErrorIs(t, err, ErrOfflineFailed)
		assert.Zero(t, transport.GetTotalCallCount())
	})

	t.Run("empty site", func(t *testing.T) {
		c, _ := mockClient(t)
		err := c.TakeOffline(context.Background(), "infinispan-b.example.com", "")
		assert.ErrorIs(t, err, ErrOfflineFailed)
	})
}

func TestClient_BringOnline(t *testing.T) {
	c, transport := mockClient(t)
	transport.RegisterResponderWithQuery(http.MethodPost,
		"https://infinispan-a.example.com:11222/rest/v2/container/x-site/backups/site-b",
		"action=bring-online",
		httpmock.NewStringResponder(http.StatusOK, ""))

	err := c.BringOnline(context.Background(), "https://infinispan-a.example.com:11222/", "site-b")
	require.NoError(t, err)

	transport.Reset()
	transport.RegisterNoResponder(httpmock.NewStringResponder(http.StatusInternalServerError, ""))
	err = c.BringOnline(context.Background(), "infinispan-a.example.com:11222", "site-b")
	assert.ErrorIs(t, err, ErrOnlineFailed)
}

func TestClient_Status(t *testing.T) {
	c, transport := mockClient(t)
	transport.RegisterResponder(http.MethodGet,
		"https://infinispan-a.example.com/rest/v2/container/x-site/backups/",
		httpmock.NewStringResponder(http.StatusOK, `{"site-b":{"status":"offline"},"site-c":{"status":"mixed","online":["node-1"],"offline":["node-2"]}}`))

	statuses, err := c.Status(context.Background(), "infinispan-a.example.com")
	require.NoError(t, err)
	assert.Equal(t, "offline", statuses["site-b"].Status)
	assert.Equal(t, []string{"node-2"}, statuses["site-c"].Offline)

	transport.Reset()
	transport.RegisterResponder(http.MethodGet,
		"https://infinispan-a.example.com/rest/v2/container/x-site/backups/",
		httpmock.NewStringResponder(http.StatusOK, `not json`))
	_, err = c.Status(context.Background(), "infinispan-a.example.com")
	assert.ErrorIs(t, err, ErrStatusFailed)
}

func TestClient_SelfSignedServer(t *testing.T) {
	var gotQuery, gotPath string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		if _, pass, ok := r.BasicAuth(); !ok || pass != "s3cr3t" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, err := NewClient(testCreds)
	require.NoError(t, err)

	require.NoError(t, c.TakeOffline(context.Background(), server.URL, "site-b"))
	assert.Equal(t, "/rest/v2/container/x-site/backups/site-b", gotPath)
	assert.Equal(t, "action=take-offline", gotQuery)

	bad, err := NewClient(Credentials{User: "developer", Password: "wrong"})
	require.NoError(t, err)
	assert.ErrorIs(t, bad.TakeOffline(context.Background(), server.URL, "site-b"), ErrOfflineFailed)
}

func TestBackupsURL(t *testing.T) {
	u, err := backupsURL("infinispan.example.com", "site-a")
	require.NoError(t, err)
	assert.Equal(t, "https://infinispan.example.com/rest/v2/container/x-site/backups/site-a", u.String())

	u, err = backupsURL("https://10.0.0.1:11222/base/", "")
	require.NoError(t, err)
	assert.Equal(t, "https://10.0.0.1:11222/base/rest/v2/container/x-site/backups/", u.String())

	_, err = backupsURL("https://", "site-a")
	assert.Error(t, err)
}
