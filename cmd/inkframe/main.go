// Command inkframe is the battery-powered e-paper info display daemon.
// One process owns the whole device: it wakes, renders, re-arms the RTC
// alarm and suspends, in a loop, until the battery runs out.
//
// With -dry-run it runs against a fake panel and an in-process sleeper,
// which is how the frame pipeline is exercised on a desk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"inkframe/internal/config"
	"inkframe/internal/cycle"
	"inkframe/internal/epd"
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
	"inkframe/internal/web"
)

var version = "dev"

// Options are the host-level paths and addresses, distinct from the
// durable device config: they describe where this daemon runs, not what
// it displays. Overridable via INKFRAME_* environment variables.
type Options struct {
	DataDir        string `envconfig:"DATA_DIR" default:"/var/lib/inkframe"`
	RunDir         string `envconfig:"RUN_DIR" default:"/run/inkframe"`
	MediaDir       string `envconfig:"MEDIA_DIR" default:"/media/usb"`
	Listen         string `envconfig:"LISTEN" default:""`
	WakeSourcePath string `envconfig:"WAKE_SOURCE_PATH" default:"/sys/power/pm_wakeup_irq"`
	GPIOChip       string `envconfig:"GPIO_CHIP" default:"gpiochip0"`
	PingHost       string `envconfig:"PING_HOST" default:"1.1.1.1"`
}

func main() {
	dryRun := flag.Bool("dry-run", false, "fake panel, in-process sleep instead of rtcwake")
	snapshot := flag.String("snapshot", "", "with -dry-run, write each committed frame to this PNG")
	flag.Parse()

	var opts Options
	if err := envconfig.Process("inkframe", &opts); err != nil {
		log.Fatalf("options: %v", err)
	}

	log.Printf("inkframe %s starting (data=%s run=%s)", version, opts.DataDir, opts.RunDir)

	cfgStore := config.NewStore(filepath.Join(opts.DataDir, "config.json"))
	cfg, err := cfgStore.Load()
	if err != nil {
		log.Printf("config: %v (continuing with defaults)", err)
	}
	// A dotenv file on removable media provisions or re-provisions the
	// device without a shell.
	cfg, changed, err := config.ApplyOverride(cfg, filepath.Join(opts.MediaDir, "inkframe.env"))
	if err != nil {
		log.Printf("config override: %v", err)
	}
	if changed {
		if err := cfgStore.Save(cfg); err != nil {
			log.Printf("config save: %v", err)
		} else {
			log.Printf("config: applied override from %s", opts.MediaDir)
		}
	}

	tlog := telemetry.New(filepath.Join(opts.DataDir, "logs"), cfg.LogErrors, cfg.LogBattery)
	defer tlog.Close()
	if cfg.MQTTBroker != "" {
		if pub, err := telemetry.NewMQTTPublisher(cfg.MQTTBroker, "inkframe-"+tlog.Session()); err != nil {
			log.Printf("mqtt: %v (file logs only)", err)
		} else {
			tlog.SetPublisher(pub)
		}
	}

	var (
		panel     framebuf.Panel
		reader    sensor.Reader
		suspender cycle.Suspender
		rebooter  cycle.Rebooter
	)
	if *dryRun {
		panel = &epd.Fake{SnapshotPath: *snapshot}
		reader = &sensor.Fake{Reading: sensor.Reading{TemperatureC: 21.0, HumidityPct: 45}}
		suspender = sleeper{}
	} else {
		dev, err := epd.Open()
		if err != nil {
			log.Fatalf("panel: %v", err)
		}
		defer dev.Close()
		panel = dev
		reader = sensor.NewIIOReader()
		suspender = cycle.RTCWake{}
		rebooter = cycle.SystemRebooter{}
	}

	frames := framebuf.New(epd.EPD_WIDTH, epd.EPD_HEIGHT, panel)
	latch := input.NewLatch()

	if !*dryRun {
		buttons, err := input.NewGPIOButtons(opts.GPIOChip, input.DefaultStatusPin, input.DefaultForecastPin, latch)
		if err != nil {
			log.Printf("buttons: %v (running without)", err)
			tlog.AppendError(fmt.Sprintf("buttons unavailable: %v", err))
		} else {
			defer buttons.Close()
		}
	} else {
		// F1/F2 on any attached keyboard stand in for the buttons.
		go input.MonitorKeyboard("", latch)
	}

	sched, err := schedule.New(
		schedule.NewFileStore(filepath.Join(opts.DataDir, "lastruns.json")),
		schedule.Task{ID: schedule.TaskSensor, Interval: cfg.SensorInterval()},
		schedule.Task{ID: schedule.TaskWeather, Interval: cfg.WeatherInterval()},
		schedule.Task{ID: schedule.TaskRotate, Interval: cfg.RotateInterval()},
		schedule.Task{ID: schedule.TaskBattery, Interval: cfg.BatteryLogInterval()},
	)
	if err != nil {
		// An unreadable last-run store degrades to a cold-start schedule;
		// only a broken task set is fatal.
		if sched == nil {
			log.Fatalf("schedule: %v", err)
		}
		log.Printf("schedule: %v", err)
	}

	assetDir := filepath.Join(opts.DataDir, "assets")
	monitor := power.NewMonitor(power.DefaultSysfsBase, filepath.Join(opts.RunDir, "power.json"))

	previewURL := ""
	if opts.Listen != "" {
		host, _ := os.Hostname()
		previewURL = "http://" + host + opts.Listen + "/frame"
	}

	ctl := cycle.New(cycle.Deps{
		Config:    cfg,
		Scheduler: sched,
		Latch:     latch,
		Classifier: wake.NewClassifier(
			wake.FileMarker{Path: filepath.Join(opts.RunDir, "boot-id")},
			latch,
			wake.SysfsStatus{Path: opts.WakeSourcePath},
		),
		Frames:          frames,
		Panel:           panel,
		Composer:        render.New(epd.EPD_WIDTH, epd.EPD_HEIGHT, assetDir),
		Forecast:        weather.NewClient(15 * time.Second),
		Sensor:          reader,
		Power:           monitor,
		Prober:          netcheck.NewICMPProber(opts.PingHost, 2*time.Second),
		Telemetry:       tlog,
		Provisioner:     provision.New(opts.MediaDir, assetDir),
		Suspender:       suspender,
		Rebooter:        rebooter,
		MarkerPath:      filepath.Join(opts.RunDir, "boot-id"),
		ViewPath:        filepath.Join(opts.RunDir, "view.json"),
		RebootStampPath: filepath.Join(opts.DataDir, "last-reboot"),
		AssetDir:        assetDir,
		Version:         version,
		PreviewURL:      previewURL,
	})

	if opts.Listen != "" {
		srv := web.New(frames, monitor, func() web.Status {
			last, count := ctl.Last()
			st := web.Status{
				Session:      tlog.Session(),
				Version:      version,
				LastWake:     last.Cause.String(),
				LastRefresh:  last.Refresh.String(),
				NextDeadline: last.NextDeadline,
				Activations:  count,
			}
			if batt, err := monitor.Read(); err == nil {
				st.Battery = batt
			}
			return st
		})
		go func() {
			if err := srv.Listen(opts.Listen); err != nil {
				log.Printf("web: %v", err)
			}
		}()
		defer srv.Shutdown()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ctl.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("cycle: %v", err)
	}
	log.Println("inkframe stopped")
}

// sleeper is the -dry-run stand-in for rtcwake: wait out the deadline
// in-process.
type sleeper struct{}

func (sleeper) Suspend(deadline time.Time) error {
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	log.Printf("dry-run: sleeping %s", d.Round(time.Second))
	time.Sleep(d)
	return nil
}
