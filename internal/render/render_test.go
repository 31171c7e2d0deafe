package render

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/image/font/basicfont"

	"inkframe/internal/sensor"
	"inkframe/internal/weather"
)

func countBlack(img *image.RGBA) int {
	n := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] < 64 && img.Pix[i+1] < 64 && img.Pix[i+2] < 64 {
			n++
		}
	}
	return n
}

func writePNG(t *testing.T, path string, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func testContent() Content {
	return Content{
		Now:     time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC),
		Version: "1.2.0",
		Sensor:  &sensor.Reading{TemperatureC: 21.3, HumidityPct: 48},
	}
}

func TestComposeWithoutAssetsStillRenders(t *testing.T) {
	c := New(800, 480, t.TempDir())
	dst := image.NewRGBA(image.Rect(0, 0, 800, 480))

	// No fonts, no images, no icons: everything degrades, nothing panics.
	c.Compose(dst, testContent())

	if countBlack(dst) == 0 {
		t.Fatal("frame is blank; expected panel chrome and text")
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	c := New(800, 480, dir)
	ct := testContent()

	a := image.NewRGBA(image.Rect(0, 0, 800, 480))
	b := image.NewRGBA(image.Rect(0, 0, 800, 480))
	c.Compose(a, ct)
	c.Compose(b, ct)

	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("pixel %d differs between identical compositions", i)
		}
	}
}

func TestWeeklyAndSummaryPanelsDiffer(t *testing.T) {
	c := New(800, 480, t.TempDir())
	ct := testContent()
	set := &weather.Set{
		Today:    weather.Summary{Category: weather.Rain, TempMax: 9, TempMin: 4, PrecipPct: 80},
		Tomorrow: weather.Summary{Category: weather.Clear, TempMax: 12, TempMin: 3},
	}
	for i := range set.Week {
		set.Week[i] = weather.Day{Weekday: time.Weekday(i), Summary: set.Today}
	}
	ct.Weather = set

	summary := image.NewRGBA(image.Rect(0, 0, 800, 480))
	c.Compose(summary, ct)

	ct.Modes.ShowWeeklyForecast = true
	weekly := image.NewRGBA(image.Rect(0, 0, 800, 480))
	c.Compose(weekly, ct)

	same := true
	for i := range summary.Pix {
		if summary.Pix[i] != weekly.Pix[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("weekly forecast toggle produced an identical frame")
	}
}

func TestStatusOverlayGated(t *testing.T) {
	c := New(800, 480, t.TempDir())
	ct := testContent()
	ct.PreviewURL = "http://10.0.0.9:8080/frame"

	off := image.NewRGBA(image.Rect(0, 0, 800, 480))
	c.Compose(off, ct)

	ct.Modes.ShowStatusOverlay = true
	on := image.NewRGBA(image.Rect(0, 0, 800, 480))
	c.Compose(on, ct)

	if countBlack(on) <= countBlack(off) {
		t.Fatal("status overlay did not add anything to the frame")
	}
}

func TestBackgroundFallsBackToPlaceholder(t *testing.T) {
	dir := t.TempDir()
	// Placeholder is solid black so it is easy to detect.
	writePNG(t, filepath.Join(dir, PlaceholderAsset), color.RGBA{0, 0, 0, 255})

	c := New(800, 480, dir)
	ct := testContent()
	ct.BackgroundPath = filepath.Join(dir, "images", "does-not-exist.png")

	dst := image.NewRGBA(image.Rect(0, 0, 800, 480))
	c.Compose(dst, ct)

	// Corner pixel comes from the scaled placeholder.
	if r := dst.RGBAAt(2, 2); r.R != 0 {
		t.Errorf("corner pixel = %v, want placeholder black", r)
	}
}

func TestComposeBoot(t *testing.T) {
	c := New(800, 480, t.TempDir())
	dst := image.NewRGBA(image.Rect(0, 0, 800, 480))
	c.ComposeBoot(dst, "inkframe starting...", []string{"no credentials configured", "using defaults"})
	if countBlack(dst) == 0 {
		t.Fatal("boot screen is blank")
	}
}

func TestDrawTextAdvances(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	face := basicfont.Face7x13

	finishX, finishY := drawText(img, "Hello", 10, 10, face, color.Black, false)
	if finishX <= 10 {
		t.Error("drawText did not advance X")
	}
	if finishY <= 10 {
		t.Error("drawText did not report a baseline below the start")
	}

	emptyX, _ := drawText(img, "", 20, 20, face, color.Black, false)
	if emptyX != 20 {
		t.Error("empty string advanced X")
	}
}

func TestLoadImageUnsupportedFormat(t *testing.T) {
	cache := map[string]*image.RGBA{}
	path := filepath.Join(t.TempDir(), "asset.bmp")
	os.WriteFile(path, []byte("xx"), 0o644)
	if _, err := loadImage(cache, path); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestLoadImageCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bg.png")
	writePNG(t, path, color.RGBA{255, 255, 255, 255})

	cache := map[string]*image.RGBA{}
	a, err := loadImage(cache, path)
	if err != nil {
		t.Fatalf("loadImage: %v", err)
	}
	b, err := loadImage(cache, path)
	if err != nil {
		t.Fatalf("loadImage: %v", err)
	}
	if a != b {
		t.Error("second load did not hit the cache")
	}
}
