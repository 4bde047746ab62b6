package replicas

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultProbePath = "/health"

type HTTPProberConfig struct {
	Client  *http.Client
	Path    string
	Timeout time.Duration
}

// HTTPProber treats any 2xx answer to GET base+path as reachable.
type HTTPProber struct {
	client *http.Client
	path   string
}

func NewHTTPProber(cfg HTTPProberConfig) *HTTPProber {
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultProbeTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultProbePath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &HTTPProber{client: client, path: path}
}

func (p *HTTPProber) Probe(ctx context.Context, baseAddress string) error {
	target := strings.TrimRight(baseAddress, "/") + p.path
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	response, err := p.client.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned %d", ErrProbeFailed, target, response.StatusCode)
	}
	return nil
}
