package web

import (
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"inkframe/internal/power"
)

type frameStub struct {
	frame *image.RGBA
}

func (f *frameStub) FrontCopy() *image.RGBA { return f.frame }

func newTestServer(t *testing.T, frame *image.RGBA) (*Server, *power.Monitor) {
	t.Helper()
	monitor := power.NewMonitor(t.TempDir(), filepath.Join(t.TempDir(), "power.json"))
	srv := New(&frameStub{frame: frame}, monitor, func() Status {
		return Status{Session: "abc123", Version: "test", LastWake: "timer-alarm"}
	})
	return srv, monitor
}

func TestServeFrameAsPNG(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 8, 8))
	srv, _ := newTestServer(t, frame)

	resp, err := srv.app.Test(httptest.NewRequest("GET", "/frame", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	require.Equal(t, frame.Bounds(), img.Bounds())
}

func TestServeFrameUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := srv.app.Test(httptest.NewRequest("GET", "/frame", nil))
	require.NoError(t, err)
	require.Equal(t, 503, resp.StatusCode)
}

func TestServeStatus(t *testing.T) {
	srv, _ := newTestServer(t, image.NewRGBA(image.Rect(0, 0, 2, 2)))

	resp, err := srv.app.Test(httptest.NewRequest("GET", "/status", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.Equal(t, "abc123", st.Session)
	require.Equal(t, "timer-alarm", st.LastWake)
}

func TestBatteryGraphNeedsSamples(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := srv.app.Test(httptest.NewRequest("GET", "/battery.svg", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "not enough samples")
}

func TestBatteryGraphPlotsHistory(t *testing.T) {
	srv, monitor := newTestServer(t, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		monitor.Record(now.Add(time.Duration(i)*15*time.Minute), power.Status{
			VoltageV: 4.1 - float64(i)*0.01,
			LevelPct: 90 - i,
		})
	}

	resp, err := srv.app.Test(httptest.NewRequest("GET", "/battery.svg", nil))
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	svg := string(body)
	require.True(t, strings.Contains(svg, "polyline"), "graph must contain the voltage polyline")
	require.Contains(t, svg, "10 samples")
}
