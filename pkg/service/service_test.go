package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-pepper/internal/log"
	"github.com/teslashibe/go-pepper/pkg/detection"
	"github.com/teslashibe/go-pepper/pkg/hub"
	"github.com/teslashibe/go-pepper/pkg/perception"
	"github.com/teslashibe/go-pepper/pkg/protocol"
	"github.com/teslashibe/go-pepper/pkg/robot"
	"github.com/teslashibe/go-pepper/pkg/sweep"
)

type fakePointer struct {
	mu   sync.Mutex
	dirs []protocol.Direction
	err  error
}

func (f *fakePointer) PointHead(_ context.Context, dir protocol.Direction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs = append(f.dirs, dir)
	return f.err
}

type fakePhotographer struct {
	mu      sync.Mutex
	err     error
	reports map[protocol.Direction]perception.Report
}

func newFakePhotographer() *fakePhotographer {
	return &fakePhotographer{reports: map[protocol.Direction]perception.Report{}}
}

func (f *fakePhotographer) TakePicture(_ context.Context, dir protocol.Direction) (perception.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return perception.Report{}, f.err
	}
	r := perception.Report{
		ID:        fmt.Sprintf("capture-%s", dir),
		Direction: dir,
		Detections: detection.FilteredSet{
			Scores:  []float32{0.9},
			Boxes:   []detection.Box{{0, 0, 1, 1}},
			Classes: []int64{1},
			Count:   1,
		},
		Labels: []string{"person"},
	}
	f.reports[dir] = r
	return r, nil
}

func (f *fakePhotographer) Latest(dir protocol.Direction) (perception.Report, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[dir]
	return r, ok
}

func (f *fakePhotographer) All() []perception.Report {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []perception.Report
	for _, d := range protocol.DefaultDirections() {
		if r, ok := f.reports[d]; ok {
			out = append(out, r)
		}
	}
	return out
}

func postJSON(t *testing.T, s *Server, path, body string) (int, protocol.Response) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out protocol.Response
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &out))
	return resp.StatusCode, out
}

// serve runs s on an ephemeral port and returns its base URL.
func serve(t *testing.T, s *Server) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Serve(ctx, ln)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return "http://" + ln.Addr().String()
}

func TestHeadServer_LookAt(t *testing.T) {
	ptr := &fakePointer{}
	s := NewHeadServer(ptr, DefaultNames())

	code, resp := postJSON(t, s, "/services/look_at", `{"direction":-1}`)
	assert.Equal(t, 200, code)
	assert.True(t, resp.Ready)
	assert.Empty(t, resp.Error)
	assert.Equal(t, []protocol.Direction{protocol.Right}, ptr.dirs)
}

func TestHeadServer_Timeout(t *testing.T) {
	ptr := &fakePointer{err: fmt.Errorf("head at 0.10: %w", robot.ErrConvergenceTimeout)}
	s := NewHeadServer(ptr, DefaultNames())

	code, resp := postJSON(t, s, "/services/look_at", `{"direction":1}`)
	assert.Equal(t, 200, code)
	assert.False(t, resp.Ready)
	assert.Equal(t, "convergence timeout", resp.Error)
}

func TestHeadServer_ActuatorError(t *testing.T) {
	ptr := &fakePointer{err: errors.New("bridge unreachable")}
	s := NewHeadServer(ptr, DefaultNames())

	_, resp := postJSON(t, s, "/services/look_at", `{"direction":0}`)
	assert.False(t, resp.Ready)
	assert.Equal(t, "bridge unreachable", resp.Error)
}

func TestHeadServer_BadRequest(t *testing.T) {
	ptr := &fakePointer{}
	s := NewHeadServer(ptr, DefaultNames())

	for _, body := range []string{`{"direction":3}`, `not json`} {
		code, resp := postJSON(t, s, "/services/look_at", body)
		assert.Equal(t, 400, code, body)
		assert.False(t, resp.Ready)
	}
	assert.Empty(t, ptr.dirs, "invalid requests must not move the head")
}

func TestHeadServer_CustomName(t *testing.T) {
	s := NewHeadServer(&fakePointer{}, Names{LookAt: "point_head", TakePicture: "snap"})

	code, resp := postJSON(t, s, "/services/point_head", `{"direction":0}`)
	assert.Equal(t, 200, code)
	assert.True(t, resp.Ready)

	req := httptest.NewRequest("POST", "/services/look_at", strings.NewReader(`{"direction":0}`))
	r, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, 404, r.StatusCode)
}

func TestServer_Health(t *testing.T) {
	s := NewHeadServer(&fakePointer{}, DefaultNames())

	resp, err := s.App().Test(httptest.NewRequest("GET", "/healthz", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var h Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, Health{Status: "ok", Service: "head"}, h)
}

func TestCameraServer_TakePicture(t *testing.T) {
	p := newFakePhotographer()
	s := NewCameraServer(p, nil, DefaultNames())

	code, resp := postJSON(t, s, "/services/take_picture", `{"direction":0}`)
	assert.Equal(t, 200, code)
	require.True(t, resp.Ready)
	require.NotNil(t, resp.Capture)
	assert.Equal(t, protocol.Front, resp.Capture.Direction)
	assert.Equal(t, 1, resp.Capture.Count)
	assert.Equal(t, []string{"person"}, resp.Capture.Labels)
}

func TestCameraServer_TakePictureFailure(t *testing.T) {
	p := newFakePhotographer()
	p.err = errors.New("camera unplugged")
	s := NewCameraServer(p, nil, DefaultNames())

	_, resp := postJSON(t, s, "/services/take_picture", `{"direction":0}`)
	assert.False(t, resp.Ready)
	assert.Equal(t, "camera unplugged", resp.Error)
	assert.Nil(t, resp.Capture)
}

func TestCameraServer_Detections(t *testing.T) {
	p := newFakePhotographer()
	s := NewCameraServer(p, nil, DefaultNames())

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/detections/left", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)

	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/detections/up", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)

	_, err = p.TakePicture(context.Background(), protocol.Left)
	require.NoError(t, err)

	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/detections/left", nil), -1)
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	var report perception.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "capture-left", report.ID)

	resp, err = s.App().Test(httptest.NewRequest("GET", "/api/detections", nil), -1)
	require.NoError(t, err)
	var all []perception.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Len(t, all, 1)
}

func TestCameraServer_StreamRequiresUpgrade(t *testing.T) {
	h := hub.New("detections")
	s := NewCameraServer(newFakePhotographer(), h, DefaultNames())

	resp, err := s.App().Test(httptest.NewRequest("GET", "/ws/detections", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 426, resp.StatusCode)
}

func TestLookAtClient(t *testing.T) {
	ptr := &fakePointer{}
	url := serve(t, NewHeadServer(ptr, DefaultNames()))
	client := NewLookAtClient(url, "look_at")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.WaitForService(ctx))

	ok, err := client.LookAt(ctx, protocol.Left)
	require.NoError(t, err)
	assert.True(t, ok)

	ptr.mu.Lock()
	ptr.err = robot.ErrConvergenceTimeout
	ptr.mu.Unlock()

	ok, err = client.LookAt(ctx, protocol.Left)
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "convergence timeout")
}

func TestTakePictureClient(t *testing.T) {
	url := serve(t, NewCameraServer(newFakePhotographer(), nil, DefaultNames()))
	client := NewTakePictureClient(url, "take_picture")

	summary, ok, err := client.Capture(context.Background(), protocol.Right)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, summary)
	assert.Equal(t, "capture-right", summary.ID)

	ok, err = client.TakePicture(context.Background(), protocol.Front)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClient_TransportErrorIsNotReady(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + ln.Addr().String()
	ln.Close()

	ok, err := NewLookAtClient(url, "look_at").LookAt(context.Background(), protocol.Front)
	assert.False(t, ok)
	assert.Error(t, err)

	ok, err = NewTakePictureClient(url, "take_picture").TakePicture(context.Background(), protocol.Front)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestWaitForService_GivesUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	url := "http://" + ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = NewLookAtClient(url, "look_at").WaitForService(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamURL(t *testing.T) {
	tests := map[string]string{
		"http://127.0.0.1:8082":  "ws://127.0.0.1:8082/ws/detections",
		"http://127.0.0.1:8082/": "ws://127.0.0.1:8082/ws/detections",
		"https://cam.local":      "wss://cam.local/ws/detections",
		"127.0.0.1:8082":         "ws://127.0.0.1:8082/ws/detections",
		"ws://cam:1":             "ws://cam:1/ws/detections",
	}
	for in, want := range tests {
		assert.Equal(t, want, StreamURL(in), in)
	}
}

func TestWatchDetections(t *testing.T) {
	h := hub.New("detections")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	url := serve(t, NewCameraServer(newFakePhotographer(), h, DefaultNames()))

	got := make(chan perception.Report, 1)
	done := make(chan error, 1)
	go func() {
		done <- WatchDetections(ctx, url, func(r perception.Report) { got <- r })
	}()

	require.Eventually(t, func() bool { return h.Subscribers() == 1 },
		2*time.Second, 10*time.Millisecond)

	require.NoError(t, h.PublishJSON(perception.Report{ID: "r1", Direction: protocol.Left}))

	select {
	case r := <-got:
		assert.Equal(t, "r1", r.ID)
		assert.Equal(t, protocol.Left, r.Direction)
	case <-time.After(2 * time.Second):
		t.Fatal("no report received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

// TestSweepOverHTTP runs a full sweep through both node servers with a
// simulated head.
func TestSweepOverHTTP(t *testing.T) {
	sim := robot.NewSimActuator()
	cfg := robot.DefaultHeadConfig()
	cfg.PollInterval = time.Millisecond
	ctrl := robot.NewAngleController(sim, cfg, robot.WithLogger(log.Discard()))

	photos := newFakePhotographer()
	headURL := serve(t, NewHeadServer(ctrl, DefaultNames()))
	cameraURL := serve(t, NewCameraServer(photos, nil, DefaultNames()))

	sweepCfg := sweep.DefaultConfig()
	sweepCfg.SettleDelay = 0
	o := sweep.New(
		NewLookAtClient(headURL, "look_at"),
		NewTakePictureClient(cameraURL, "take_picture"),
		sim,
		sweepCfg,
		sweep.WithLogger(log.Discard()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := o.Run(ctx)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.Steps, 3)
	assert.Len(t, photos.All(), 3)
	assert.Equal(t, 2, sim.CallCount("GoToPosture"))
}
