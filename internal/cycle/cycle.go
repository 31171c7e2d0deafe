// Package cycle runs the activation state machine: classify the wake,
// consume button latches, run due tasks, compose and commit a frame,
// arm the next alarm and suspend. One activation is one pass; the
// process then sleeps in rtcwake until the alarm or a button resumes it.
//
// Task and display failures are absorbed, logged and shown as gaps on
// the frame. The one thing an activation must always reach is the
// suspend with a bounded alarm, because a device that fails to re-arm
// its wakeup is bricked until someone pulls the battery.
package cycle

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"inkframe/internal/config"
	"inkframe/internal/framebuf"
	"inkframe/internal/input"
	"inkframe/internal/netcheck"
	"inkframe/internal/power"
	"inkframe/internal/provision"
	"inkframe/internal/render"
	"inkframe/internal/schedule"
	"inkframe/internal/sensor"
	"inkframe/internal/telemetry"
	"inkframe/internal/wake"
	"inkframe/internal/weather"
)

// State names one phase of an activation.
type State int

const (
	StateIdle State = iota
	StateClassifyingWake
	StateProvisioning
	StateHandlingInputs
	StateRunningDueTasks
	StateComposing
	StateCommitting
	StateSchedulingNextWake
	StateSuspended
)

func (s State) String() string {
	switch s {
	case StateClassifyingWake:
		return "classifying-wake"
	case StateProvisioning:
		return "provisioning"
	case StateHandlingInputs:
		return "handling-inputs"
	case StateRunningDueTasks:
		return "running-due-tasks"
	case StateComposing:
		return "composing"
	case StateCommitting:
		return "committing"
	case StateSchedulingNextWake:
		return "scheduling-next-wake"
	case StateSuspended:
		return "suspended"
	}
	return "idle"
}

// weatherRetry is how soon a failed forecast fetch is retried. Shorter
// than the configured interval, long enough not to burn the battery on
// a dead network.
const weatherRetry = 5 * time.Minute

// Forecaster fetches a forecast. Satisfied by weather.Client.
type Forecaster interface {
	FetchForecast(ctx context.Context, city, apiKey string) (*weather.Set, error)
}

// Deps are the collaborators one controller drives.
type Deps struct {
	Config      config.Config
	Scheduler   *schedule.Scheduler
	Latch       *input.Latch
	Classifier  *wake.Classifier
	Frames      *framebuf.DoubleBuffer
	Panel       framebuf.Panel
	Composer    *render.Composer
	Forecast    Forecaster
	Sensor      sensor.Reader
	Power       *power.Monitor
	Prober      netcheck.Prober
	Telemetry   *telemetry.Logger
	Provisioner *provision.Provisioner
	Suspender   Suspender
	Rebooter    Rebooter

	// MarkerPath is the tmpfs boot marker; its absence means cold boot.
	MarkerPath string
	// ViewPath is the tmpfs view-state file.
	ViewPath string
	// RebootStampPath is the durable last-reboot timestamp.
	RebootStampPath string
	AssetDir        string
	Version         string
	PreviewURL      string
}

// Result summarizes one completed activation.
type Result struct {
	When         time.Time
	Cause        wake.Cause
	Ran          []schedule.TaskID
	Committed    bool
	Refresh      framebuf.RefreshMode
	NextDeadline time.Time
}

// Controller owns one activation loop.
type Controller struct {
	deps Deps

	mu          sync.Mutex
	state       State
	trace       []State
	last        Result
	activations int
}

func New(deps Deps) *Controller {
	return &Controller{deps: deps}
}

// Last returns the most recent activation result and the total count.
func (c *Controller) Last() (Result, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.activations
}

// Trace returns the states the last activation passed through.
func (c *Controller) Trace() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]State, len(c.trace))
	copy(out, c.trace)
	return out
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.trace = append(c.trace, s)
	c.mu.Unlock()
	log.Printf("cycle: %s", s)
}

// fail logs a non-fatal failure to stderr and the error log.
func (c *Controller) fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("cycle: %s", msg)
	c.deps.Telemetry.AppendError(msg)
}

// Run loops activations until the context is cancelled. Suspend returns
// when the hardware resumes, so each loop iteration is one wake.
func (c *Controller) Run(ctx context.Context) error {
	for {
		res := c.Activate(ctx, time.Now())
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := c.deps.Suspender.Suspend(res.NextDeadline); err != nil {
			// Suspend failing means we are stuck awake; wait out the
			// deadline in-process rather than spinning.
			c.fail("suspend: %v", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Until(res.NextDeadline)):
			}
		}
	}
}

// Activate performs one full activation and returns its result. The
// suspend itself is the caller's job (see Run); Activate ends with the
// alarm deadline computed, the boot marker written and the panel asleep.
func (c *Controller) Activate(ctx context.Context, now time.Time) Result {
	c.mu.Lock()
	c.trace = c.trace[:0]
	c.mu.Unlock()

	res := Result{When: now}

	c.setState(StateClassifyingWake)
	res.Cause = c.deps.Classifier.Classify()
	log.Printf("cycle: wake cause %s", res.Cause)

	view := loadView(c.deps.ViewPath)

	if res.Cause == wake.ColdBoot {
		view = c.coldBoot(now)
	}

	c.setState(StateHandlingInputs)
	if c.deps.Latch.Take(input.ButtonStatus) {
		view.Modes.ShowStatusOverlay = !view.Modes.ShowStatusOverlay
		log.Printf("cycle: status overlay %v", view.Modes.ShowStatusOverlay)
	}
	if c.deps.Latch.Take(input.ButtonForecast) {
		view.Modes.ShowWeeklyForecast = !view.Modes.ShowWeeklyForecast
		log.Printf("cycle: weekly forecast %v", view.Modes.ShowWeeklyForecast)
	}

	c.setState(StateRunningDueTasks)
	var due []schedule.TaskID
	if res.Cause == wake.ColdBoot {
		due = c.deps.Scheduler.IDs()
	} else {
		due = c.deps.Scheduler.Due(now)
	}
	prevBackground := view.Background
	res.Ran = c.runTasks(ctx, now, due, &view)

	c.setState(StateComposing)
	ct := c.buildContent(now, view)
	c.deps.Composer.Compose(c.deps.Frames.Back(), ct)

	c.setState(StateCommitting)
	res.Committed, res.Refresh = c.commit(res.Cause, view.Background != prevBackground, &view)

	c.setState(StateSchedulingNextWake)
	res.NextDeadline = c.deps.Scheduler.NextDeadline(now)
	if err := saveView(c.deps.ViewPath, view); err != nil {
		c.fail("save view state: %v", err)
	}
	c.writeMarker()
	c.maybeReboot(now)

	if err := c.deps.Panel.Sleep(); err != nil {
		c.fail("panel sleep: %v", err)
	}

	c.setState(StateSuspended)
	log.Printf("cycle: next wake %s", res.NextDeadline.Format(time.RFC3339))

	c.mu.Lock()
	c.last = res
	c.activations++
	c.mu.Unlock()
	return res
}

// coldBoot provisions assets, applies any override file, shows the boot
// banner and returns a fresh view state.
func (c *Controller) coldBoot(now time.Time) viewState {
	c.setState(StateProvisioning)

	if _, err := c.deps.Provisioner.Sync(); err != nil {
		c.fail("provision: %v", err)
	}

	var notes []string
	if !c.deps.Config.HasCredentials() {
		notes = append(notes, "no network credentials configured")
	}
	if c.deps.Config.APIKey == "" {
		notes = append(notes, "no weather API key configured")
	}
	if c.deps.Config.City == "" {
		notes = append(notes, "no city configured")
	}
	notes = append(notes, "version "+c.deps.Version)

	back := c.deps.Frames.Back()
	c.deps.Composer.ComposeBoot(back, c.deps.Config.Banner, notes)
	if err := c.deps.Panel.Init(); err != nil {
		c.fail("panel init: %v", err)
	} else if err := c.deps.Frames.Commit(framebuf.RefreshFull); err != nil {
		c.fail("boot screen: %v", err)
	}

	if c.deps.RebootStampPath != "" {
		if _, err := os.Stat(c.deps.RebootStampPath); err != nil {
			c.writeRebootStamp(now)
		}
	}
	return viewState{}
}

// runTasks executes the due tasks in a fixed order: sensor first so the
// frame shows the freshest reading, content next, battery logging last.
func (c *Controller) runTasks(ctx context.Context, now time.Time, due []schedule.TaskID, view *viewState) []schedule.TaskID {
	order := []schedule.TaskID{schedule.TaskSensor, schedule.TaskWeather, schedule.TaskRotate, schedule.TaskBattery}
	dueSet := map[schedule.TaskID]bool{}
	for _, id := range due {
		dueSet[id] = true
	}

	var ran []schedule.TaskID
	for _, id := range order {
		if !dueSet[id] {
			continue
		}
		switch id {
		case schedule.TaskSensor:
			c.runSensor(now, view)
		case schedule.TaskWeather:
			if !c.runWeather(ctx, now, view) {
				continue // marked for retry, not as run
			}
		case schedule.TaskRotate:
			c.runRotate(view)
		case schedule.TaskBattery:
			c.runBattery(now)
		}
		if err := c.deps.Scheduler.MarkRun(id, now); err != nil {
			c.fail("%v", err)
		}
		ran = append(ran, id)
	}
	return ran
}

func (c *Controller) runSensor(now time.Time, view *viewState) {
	r, err := c.deps.Sensor.Read()
	if err != nil {
		// Keep the previous reading; the frame shows a gap only when
		// there has never been one.
		c.fail("sensor read: %v", err)
		return
	}
	view.Sensor = &r
}

// runWeather fetches the forecast. Returns false when the fetch failed
// and the task was rescheduled for a short retry instead of a full
// interval; the last good forecast stays on screen either way.
func (c *Controller) runWeather(ctx context.Context, now time.Time, view *viewState) bool {
	cfg := c.deps.Config
	if cfg.APIKey == "" || cfg.City == "" {
		// Not an error, just unconfigured. Mark as run so the alarm
		// tracks the other tasks instead of retrying pointlessly.
		return true
	}

	set, err := c.deps.Forecast.FetchForecast(ctx, cfg.City, cfg.APIKey)
	if err != nil {
		c.fail("weather fetch: %v", err)
		retry := weatherRetry
		if retry > cfg.WeatherInterval() {
			retry = cfg.WeatherInterval()
		}
		if err := c.deps.Scheduler.MarkRun(schedule.TaskWeather, now.Add(retry-cfg.WeatherInterval())); err != nil {
			c.fail("%v", err)
		}
		return false
	}
	view.Weather = set
	return true
}

// runRotate advances to the next background image in the asset dir.
func (c *Controller) runRotate(view *viewState) {
	images := c.listBackgrounds()
	if len(images) == 0 {
		view.Background = ""
		return
	}
	view.Rotation = (view.Rotation + 1) % len(images)
	view.Background = images[view.Rotation]
}

func (c *Controller) runBattery(now time.Time) {
	st, err := c.deps.Power.Read()
	if err != nil {
		c.fail("battery read: %v", err)
		return
	}
	c.deps.Power.Record(now, st)
	c.deps.Telemetry.AppendBatterySample(st.VoltageV, st.LevelPct)
}

// listBackgrounds returns the rotation set: every raster image under
// images/ except the placeholder, sorted for a stable order.
func (c *Controller) listBackgrounds() []string {
	dir := filepath.Join(c.deps.AssetDir, "images")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	placeholder := filepath.Base(render.PlaceholderAsset)
	for _, e := range entries {
		if e.IsDir() || e.Name() == placeholder {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out
}

// buildContent assembles everything the composer draws. Battery and
// network are probed here rather than as scheduled tasks because they
// only matter when the status overlay is visible.
func (c *Controller) buildContent(now time.Time, view viewState) render.Content {
	ct := render.Content{
		Modes:          view.Modes,
		BackgroundPath: view.Background,
		Sensor:         view.Sensor,
		Weather:        view.Weather,
		Now:            now,
		Version:        c.deps.Version,
		PreviewURL:     c.deps.PreviewURL,
	}
	if view.Modes.ShowStatusOverlay {
		if st, err := c.deps.Power.Read(); err == nil {
			ct.Battery = st
		}
		if c.deps.Prober != nil {
			ct.Net = c.deps.Prober.Probe()
		}
	}
	return ct
}

// commit decides the refresh mode and pushes the frame. An unchanged
// frame skips the panel entirely. A new background image forces a full
// refresh, as does cold boot; overlay and text changes go out as
// partial refreshes until the ghost counter hits the configured limit,
// at which point a full refresh clears the accumulated artifacts.
func (c *Controller) commit(cause wake.Cause, backgroundChanged bool, view *viewState) (bool, framebuf.RefreshMode) {
	back := c.deps.Frames.Back()
	front := c.deps.Frames.FrontCopy()

	if cause != wake.ColdBoot && bytes.Equal(back.Pix, front.Pix) {
		log.Printf("cycle: frame unchanged, skipping refresh")
		return false, framebuf.RefreshPartial
	}

	mode := framebuf.RefreshPartial
	if cause == wake.ColdBoot || backgroundChanged || view.GhostCount >= c.deps.Config.GhostLimit {
		mode = framebuf.RefreshFull
	}

	// The panel deep-sleeps between activations; it needs a re-init
	// before it will accept a frame.
	if err := c.deps.Panel.Init(); err != nil {
		c.fail("panel init: %v", err)
		return false, mode
	}
	if err := c.deps.Frames.Commit(mode); err != nil {
		c.fail("commit: %v", err)
		return false, mode
	}

	if mode == framebuf.RefreshFull {
		view.GhostCount = 0
	} else {
		view.GhostCount++
	}
	return true, mode
}

func (c *Controller) writeMarker() {
	if err := os.MkdirAll(filepath.Dir(c.deps.MarkerPath), 0o755); err != nil {
		c.fail("boot marker: %v", err)
		return
	}
	if err := os.WriteFile(c.deps.MarkerPath, []byte(c.deps.Telemetry.Session()+"\n"), 0o644); err != nil {
		c.fail("boot marker: %v", err)
	}
}

// maybeReboot triggers the maintenance reboot when the uptime stamp is
// older than the configured interval. Runs after the frame is committed
// so the display is current when the device goes down.
func (c *Controller) maybeReboot(now time.Time) {
	if c.deps.Rebooter == nil || c.deps.RebootStampPath == "" {
		return
	}
	data, err := os.ReadFile(c.deps.RebootStampPath)
	if err != nil {
		c.writeRebootStamp(now)
		return
	}
	stamp, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		c.writeRebootStamp(now)
		return
	}
	interval := time.Duration(c.deps.Config.RebootIntervalDays) * 24 * time.Hour
	if now.Sub(stamp) < interval {
		return
	}
	log.Printf("cycle: maintenance reboot (up since %s)", stamp.Format(time.RFC3339))
	c.writeRebootStamp(now)
	if err := c.deps.Rebooter.Reboot(); err != nil {
		c.fail("%v", err)
	}
}

func (c *Controller) writeRebootStamp(now time.Time) {
	os.MkdirAll(filepath.Dir(c.deps.RebootStampPath), 0o755)
	if err := os.WriteFile(c.deps.RebootStampPath, []byte(now.Format(time.RFC3339)+"\n"), 0o644); err != nil {
		c.fail("reboot stamp: %v", err)
	}
}
