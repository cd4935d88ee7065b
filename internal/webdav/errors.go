package webdav

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors classify transport failures into the taxonomy the
// executor acts on (spec.md §7). The client returns them either bare or
// wrapped with fmt.Errorf("...: %w", ...), so callers test for them with
// errors.Is.
var (
	ErrNotFound         = errors.New("webdav: not found")
	ErrUnauthorized     = errors.New("webdav: unauthorized")
	ErrForbidden        = errors.New("webdav: forbidden")
	ErrConflict         = errors.New("webdav: conflict")
	ErrLocked           = errors.New("webdav: locked")
	ErrThrottled        = errors.New("webdav: throttled")
	ErrServer           = errors.New("webdav: server error")
	ErrBadRequest       = errors.New("webdav: bad request")
	ErrMethodNotAllowed = errors.New("webdav: method not allowed")
)

// classifyStatus maps an HTTP status code from a WebDAV response to one
// of the sentinel errors above, the way the teacher's Graph API client
// classifies Microsoft Graph statuses.
func classifyStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusConflict:
		return ErrConflict
	case code == http.StatusLocked:
		return ErrLocked
	case code == http.StatusTooManyRequests:
		return ErrThrottled
	case code == http.StatusBadRequest:
		return ErrBadRequest
	case code == http.StatusMethodNotAllowed:
		return ErrMethodNotAllowed
	case code >= 500:
		return ErrServer
	default:
		return fmt.Errorf("webdav: unexpected status %d: %s", code, truncate(body, 256))
	}
}

// isRetryable reports whether err (as classified by classifyStatus)
// represents a transient condition worth retrying with backoff.
func isRetryable(err error) bool {
	return errors.Is(err, ErrThrottled) || errors.Is(err, ErrServer) || errors.Is(err, ErrLocked)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
