package webdav

import (
	"context"
	"crypto/rand"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Transport is the external collaborator the scanner, executor and
// engine depend on for every remote operation. It is intentionally
// narrow: callers never see HTTP, XML or authentication details, only
// the five WebDAV verbs the sync engine actually needs.
type Transport interface {
	// PropfindRecursive lists every file and directory below dir
	// (relative to the remote base), depth=infinity. Returned paths are
	// relative to dir; dir itself is not included.
	PropfindRecursive(ctx context.Context, dir string) ([]Resource, error)
	// Get streams the content of path.
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	// Put uploads content to path, creating or overwriting it.
	Put(ctx context.Context, path string, content io.Reader, size int64) error
	// Mkcol creates the collection (directory) at path. It is not an
	// error for path to already exist as a collection.
	Mkcol(ctx context.Context, path string) error
	// Delete removes the resource at path (file or, recursively, a
	// collection).
	Delete(ctx context.Context, path string) error
}

// Resource is one entry returned by PropfindRecursive.
type Resource struct {
	Path  string
	Dir   bool
	Size  int64
	ETag  string
	Mtime time.Time
	// ContentHash is a SHA-256 content fingerprint in the same lowercase
	// hex form the local scanner produces, populated only when the
	// server exposes the Nextcloud/ownCloud oc:checksums property with a
	// SHA256 entry. Empty on servers that don't.
	ContentHash string
}

// Credentials is an opaque authentication method applied to every
// request. Exactly one of Basic or Bearer should be set.
type Credentials struct {
	Username string
	Password string
	Bearer   string
}

func (c Credentials) apply(req *http.Request) {
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
		return
	}
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}
}

// RetryPolicy configures the exponential backoff applied to retryable
// failures, matching the teacher's Graph API client defaults.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy is base 1s, factor 2x, capped at 60s, up to 5
// attempts, the same schedule the teacher applies to Graph API calls.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	BaseDelay:   1 * time.Second,
	MaxDelay:    60 * time.Second,
}

// Client is the concrete HTTP implementation of Transport against a
// standards-compliant WebDAV server (Nextcloud, ownCloud, and similar).
type Client struct {
	baseURL string
	creds   Credentials
	http    *http.Client
	retry   RetryPolicy
	logger  *slog.Logger
}

// NewClient returns a Client rooted at baseURL (e.g.
// "https://cloud.example.com/remote.php/dav/files/alice/notes").
func NewClient(baseURL string, creds Credentials, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		creds:   creds,
		http:    httpClient,
		retry:   DefaultRetryPolicy,
		logger:  logger,
	}
}

func (c *Client) resolve(p string) string {
	return c.baseURL + "/" + strings.TrimPrefix(p, "/")
}

// do executes req with exponential backoff and jitter on retryable
// statuses, returning the classified error (if any) on exhaustion.
func (c *Client) do(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	delay := c.retry.BaseDelay

	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			jittered := jitter(delay)
			c.logger.Debug("webdav: retrying after backoff", "attempt", attempt, "delay", jittered)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jittered):
			}
			delay = time.Duration(math.Min(float64(delay*2), float64(c.retry.MaxDelay)))
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}
		c.creds.apply(req)

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("webdav: request failed: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		classified := classifyStatus(resp.StatusCode, body)
		if !isRetryable(classified) {
			return nil, classified
		}
		lastErr = classified
	}

	return nil, fmt.Errorf("webdav: exhausted %d attempts: %w", c.retry.MaxAttempts, lastErr)
}

func jitter(d time.Duration) time.Duration {
	// +/-25% jitter, matching the teacher's retry schedule.
	n, err := rand.Int(rand.Reader, big.NewInt(int64(d)/2))
	if err != nil {
		return d
	}
	return d*3/4 + time.Duration(n.Int64())
}

// Get implements Transport.
func (c *Client) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path), nil)
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Put implements Transport.
func (c *Client) Put(ctx context.Context, path string, content io.Reader, size int64) error {
	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.resolve(path), content)
		if err != nil {
			return nil, err
		}
		if size >= 0 {
			req.ContentLength = size
		}
		return req, nil
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Mkcol implements Transport. A 405 Method Not Allowed response means the
// collection already exists, which is not an error for our callers.
func (c *Client) Mkcol(ctx context.Context, path string) error {
	resp, err := c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, "MKCOL", c.resolve(path), nil)
	})
	if err != nil {
		if errors.Is(err, ErrMethodNotAllowed) {
			// The collection already exists; not an error for our callers.
			return nil
		}
		return err
	}
	resp.Body.Close()
	return nil
}

// Delete implements Transport.
func (c *Client) Delete(ctx context.Context, path string) error {
	resp, err := c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodDelete, c.resolve(path), nil)
	})
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

const propfindBody = `<?xml version="1.0" encoding="utf-8"?>
<D:propfind xmlns:D="DAV:" xmlns:oc="http://owncloud.org/ns">
  <D:prop>
    <D:resourcetype/>
    <D:getcontentlength/>
    <D:getlastmodified/>
    <D:getetag/>
    <oc:checksums/>
  </D:prop>
</D:propfind>`

// PropfindRecursive implements Transport using a single depth=infinity
// request where the server supports it. Resources are returned relative
// to dir, with the leading slash stripped.
func (c *Client) PropfindRecursive(ctx context.Context, dir string) ([]Resource, error) {
	resp, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, "PROPFIND", c.resolve(dir), strings.NewReader(propfindBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Depth", "infinity")
		req.Header.Set("Content-Type", "application/xml; charset=utf-8")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ms multistatus
	if err := xml.NewDecoder(resp.Body).Decode(&ms); err != nil {
		return nil, fmt.Errorf("webdav: decode propfind response: %w", err)
	}

	basePath, err := url.Parse(c.resolve(dir))
	if err != nil {
		return nil, fmt.Errorf("webdav: parse base path: %w", err)
	}

	resources := make([]Resource, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		res, ok := r.toResource(basePath.Path)
		if ok {
			resources = append(resources, res)
		}
	}
	return resources, nil
}

type multistatus struct {
	XMLName   xml.Name   `xml:"DAV: multistatus"`
	Responses []response `xml:"response"`
}

type response struct {
	Href     string   `xml:"href"`
	Propstat propstat `xml:"propstat"`
}

type propstat struct {
	Prop   prop   `xml:"prop"`
	Status string `xml:"status"`
}

type prop struct {
	ResourceType  resourceType `xml:"resourcetype"`
	ContentLength string       `xml:"getcontentlength"`
	LastModified  string       `xml:"getlastmodified"`
	ETag          string       `xml:"getetag"`
	Checksums     checksums    `xml:"checksums"`
}

type resourceType struct {
	Collection *struct{} `xml:"collection"`
}

// checksums mirrors Nextcloud/ownCloud's oc:checksums property: a single
// element holding one or more algorithm-prefixed checksums separated by
// whitespace, e.g. "SHA1:abcd... MD5:1234... SHA256:ef01...".
type checksums struct {
	Value string `xml:"checksum"`
}

// sha256Checksum extracts the SHA256-prefixed entry from an oc:checksums
// value, lowercased to match the local scanner's hex encoding. Returns ""
// if the server didn't report one (most WebDAV servers don't).
func (c checksums) sha256Checksum() string {
	for _, field := range strings.Fields(c.Value) {
		algo, hash, ok := strings.Cut(field, ":")
		if ok && strings.EqualFold(algo, "SHA256") {
			return strings.ToLower(hash)
		}
	}
	return ""
}

// toResource converts one PROPFIND response into a Resource whose Path is
// relative to basePath. It returns ok=false for the self-referencing
// entry describing basePath itself when basePath is a directory —
// callers only want its children.
func (r response) toResource(basePath string) (Resource, bool) {
	href, err := url.PathUnescape(r.Href)
	if err != nil {
		href = r.Href
	}
	rel := strings.TrimPrefix(href, basePath)
	rel = strings.Trim(rel, "/")
	if rel == "" {
		return Resource{}, false
	}

	res := Resource{
		Path:        rel,
		Dir:         r.Propstat.Prop.ResourceType.Collection != nil,
		ETag:        strings.Trim(r.Propstat.Prop.ETag, `"`),
		ContentHash: r.Propstat.Prop.Checksums.sha256Checksum(),
	}
	if n, err := strconv.ParseInt(r.Propstat.Prop.ContentLength, 10, 64); err == nil {
		res.Size = n
	}
	if t, err := time.Parse(time.RFC1123, r.Propstat.Prop.LastModified); err == nil {
		res.Mtime = t
	}
	return res, true
}
