package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-pepper/internal/httpc"
	"github.com/teslashibe/go-pepper/pkg/protocol"
)

// DefaultWaitInterval is how often WaitForService polls the health path.
const DefaultWaitInterval = 500 * time.Millisecond

// endpoint is one named service on a node.
type endpoint struct {
	baseURL string
	name    string
	http    *http.Client
}

func newEndpoint(baseURL, name string) endpoint {
	return endpoint{baseURL: strings.TrimRight(baseURL, "/"), name: name}
}

// call posts req to the service. A transport error and a not-ready reply
// both report false.
func (e endpoint) call(ctx context.Context, req any) (protocol.Response, bool, error) {
	var resp protocol.Response
	if err := httpc.PostJSON(ctx, e.http, e.baseURL+protocol.ServicePath(e.name), req, &resp); err != nil {
		return resp, false, fmt.Errorf("%s: %w", e.name, err)
	}
	if !resp.Ready {
		msg := resp.Error
		if msg == "" {
			msg = "not ready"
		}
		return resp, false, fmt.Errorf("%s: %s", e.name, msg)
	}
	return resp, true, nil
}

// WaitForService blocks until the node answers on its health path or ctx
// is done.
func (e endpoint) WaitForService(ctx context.Context) error {
	url := e.baseURL + protocol.HealthPath
	ticker := time.NewTicker(DefaultWaitInterval)
	defer ticker.Stop()

	for {
		var h Health
		if err := httpc.GetJSON(ctx, e.http, url, &h); err == nil && h.Status == "ok" {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", e.name, ctx.Err())
		case <-ticker.C:
		}
	}
}

// LookAtClient calls the LookAt service of the head node.
type LookAtClient struct {
	endpoint
}

// NewLookAtClient creates a client for the service name on baseURL.
func NewLookAtClient(baseURL, name string) *LookAtClient {
	return &LookAtClient{endpoint: newEndpoint(baseURL, name)}
}

// LookAt points the head at dir and reports whether it converged.
func (c *LookAtClient) LookAt(ctx context.Context, dir protocol.Direction) (bool, error) {
	_, ok, err := c.call(ctx, protocol.LookAtRequest{Direction: dir})
	return ok, err
}

// TakePictureClient calls the TakePicture service of the camera node.
type TakePictureClient struct {
	endpoint
}

// NewTakePictureClient creates a client for the service name on baseURL.
func NewTakePictureClient(baseURL, name string) *TakePictureClient {
	return &TakePictureClient{endpoint: newEndpoint(baseURL, name)}
}

// TakePicture captures at dir and reports whether it succeeded.
func (c *TakePictureClient) TakePicture(ctx context.Context, dir protocol.Direction) (bool, error) {
	_, ok, err := c.Capture(ctx, dir)
	return ok, err
}

// Capture is TakePicture returning the detection summary as well.
func (c *TakePictureClient) Capture(ctx context.Context, dir protocol.Direction) (*protocol.CaptureSummary, bool, error) {
	resp, ok, err := c.call(ctx, protocol.TakePictureRequest{Direction: dir})
	return resp.Capture, ok, err
}
