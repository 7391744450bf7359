// Package replication drives the cross-site backup state of an Infinispan
// cluster over its REST v2 API.
//
// Calls go over TLS with certificate verification disabled. The clusters sit
// on an internal control-plane network and present self-signed certificates;
// this is an explicit trust decision for this client only.
package replication

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"code.cloudfoundry.org/tlsconfig"
)

const backupsPath = "/rest/v2/container/x-site/backups/"

// Backup actions
const (
	ActionTakeOffline = "take-offline"
	ActionBringOnline = "bring-online"
)

var (
	ErrOfflineFailed = errors.New("replication: take-offline failed")
	ErrOnlineFailed  = errors.New("replication: bring-online failed")
	ErrStatusFailed  = errors.New("replication: backup status failed")
)

// SiteStatus is the backup state reported for one remote site
type SiteStatus struct {
	Status  string   `json:"status"`
	Online  []string `json:"online,omitempty"`
	Offline []string `json:"offline,omitempty"`
}

// Credentials authenticate against the Infinispan REST endpoint
type Credentials struct {
	User     string
	Password string
}

// Option configures a Client
type Option func(*Client)

// WithTransport swaps the HTTP transport, mostly for tests
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = rt
	}
}

// WithTimeout bounds each request
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// Client issues x-site backup commands
type Client struct {
	http  *http.Client
	creds Credentials
}

// NewClient builds a client with internal-service TLS defaults and
// verification turned off.
func NewClient(creds Credentials, opts ...Option) (*Client, error) {
	tlsConf, err := tlsconfig.Build(tlsconfig.WithInternalServiceDefaults()).Client()
	if err != nil {
		return nil, fmt.Errorf("replication: tls config: %w", err)
	}
	tlsConf.InsecureSkipVerify = true // #nosec G402 -- see package doc

	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: tlsConf,
				Proxy:           http.ProxyFromEnvironment,
			},
			Timeout: 30 * time.Second,
		},
		creds: creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TLSConfig exposes the transport's TLS settings
func (c *Client) TLSConfig() *tls.Config {
	if t, ok := c.http.Transport.(*http.Transport); ok {
		return t.TLSClientConfig
	}
	return nil
}

// TakeOffline stops the cluster at endpoint from backing up to site
func (c *Client) TakeOffline(ctx context.Context, endpoint, site string) error {
	if err := c.action(ctx, endpoint, site, ActionTakeOffline); err != nil {
		return fmt.Errorf("%w: site=%s: %w", ErrOfflineFailed, site, err)
	}
	return nil
}

// BringOnline resumes backups from the cluster at endpoint to site
func (c *Client) BringOnline(ctx context.Context, endpoint, site string) error {
	if err := c.action(ctx, endpoint, site, ActionBringOnline); err != nil {
		return fmt.Errorf("%w: site=%s: %w", ErrOnlineFailed, site, err)
	}
	return nil
}

// Status returns the backup status of every remote site known to endpoint
func (c *Client) Status(ctx context.Context, endpoint string) (map[string]SiteStatus, error) {
	u, err := backupsURL(endpoint, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStatusFailed, err)
	}

	statuses := make(map[string]SiteStatus)
	if err := json.Unmarshal(body, &statuses); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrStatusFailed, err)
	}
	return statuses, nil
}

func (c *Client) action(ctx context.Context, endpoint, site, action string) error {
	if site == "" {
		return errors.New("site is required")
	}
	u, err := backupsURL(endpoint, site)
	if err != nil {
		return err
	}
	u.RawQuery = url.Values{"action": []string{action}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	req.SetBasicAuth(c.creds.User, c.creds.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return body, nil
}

// backupsURL accepts either host[:port] or a full https URL
func backupsURL(endpoint, site string) (*url.URL, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid endpoint %q", endpoint)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + backupsPath + site
	return u, nil
}
