package monitor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/uied-nav/sitemonitor/internal/core"
)

const (
	maxRedirects     = 5
	defaultUserAgent = "SiteMonitor/1.0 (+https://github.com/uied-nav/sitemonitor)"

	msgTimeout   = "request timeout"
	msgDNSFailed = "dns resolution failed"
)

// Checker probes one URL and classifies the outcome. It never returns an
// error: transport failures, timeouts and bad status codes all become
// failed outcomes.
type Checker struct {
	client    *http.Client
	userAgent string
}

// NewChecker builds a checker whose probes time out after the given
// per-request duration and follow at most 5 redirects.
func NewChecker(timeout time.Duration, userAgent string) *Checker {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Checker{
		userAgent: userAgent,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
	}
}

// Check issues a GET against the website's URL. A status code in [200, 400)
// is a success; any other code fails with message "HTTP <code>". Transport
// errors are classified into timeout, DNS failure or the raw error text.
func (c *Checker) Check(ctx context.Context, w *core.Website) core.Outcome {
	out := core.Outcome{
		WebsiteID: w.ID,
		URL:       w.URL,
		CheckedAt: time.Now().UTC(),
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		out.Status = core.CheckFailed
		out.ErrorMessage = strptr(err.Error())
		return out
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	out.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		out.Status = core.CheckFailed
		out.ErrorMessage = strptr(classifyNetErr(err))
		return out
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	out.HTTPStatus = &code
	if code >= 200 && code < 400 {
		out.Status = core.CheckSuccess
	} else {
		out.Status = core.CheckFailed
		out.ErrorMessage = strptr(fmt.Sprintf("HTTP %d", code))
	}
	return out
}

// classifyNetErr maps transport errors onto short operator-facing
// categories; anything unrecognized keeps the underlying error text.
func classifyNetErr(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return msgDNSFailed
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return msgTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return msgTimeout
	}

	return err.Error()
}

func strptr(s string) *string { return &s }
