// Package render composes display frames. The composer draws a complete
// frame into whatever back buffer it is handed; it never touches the
// panel and never fails the cycle — missing assets degrade to
// placeholders and fallback faces.
package render

import (
	"fmt"
	"image"
	"log"
	"path/filepath"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"

	"inkframe/internal/framebuf"
	"inkframe/internal/netcheck"
	"inkframe/internal/power"
	"inkframe/internal/sensor"
	"inkframe/internal/weather"
)

// Layout constants for the 800x480 landscape panel.
const (
	MARGIN = 12

	SENSOR_PANEL_W = 240
	SENSOR_PANEL_H = 60

	BOTTOM_PANEL_H = 130

	OVERLAY_W = 250
	OVERLAY_H = 260
	QR_SIZE   = 96

	ICON_SIZE      = 64
	WEEK_ICON_SIZE = 40
)

// PlaceholderAsset is drawn when the selected background is unreadable.
const PlaceholderAsset = "images/placeholder.png"

// Modes are the two button-toggled display booleans.
type Modes struct {
	ShowStatusOverlay  bool `json:"show_status_overlay"`
	ShowWeeklyForecast bool `json:"show_weekly_forecast"`
}

// Content is everything one frame shows. Nil pointers mean "no data
// yet"; the composer renders an honest gap rather than stale guesses.
type Content struct {
	Modes          Modes
	BackgroundPath string
	Sensor         *sensor.Reading
	Weather        *weather.Set
	Battery        power.Status
	Net            netcheck.Result
	Now            time.Time
	Version        string
	PreviewURL     string
}

// Composer draws frames for one panel geometry.
type Composer struct {
	width    int
	height   int
	assetDir string

	faces      map[string]font.Face
	imageCache map[string]*image.RGBA
	iconCache  map[string]*image.RGBA
}

// New builds a composer for the given panel size and asset directory.
func New(width, height int, assetDir string) *Composer {
	return &Composer{
		width:      width,
		height:     height,
		assetDir:   assetDir,
		faces:      make(map[string]font.Face),
		imageCache: make(map[string]*image.RGBA),
		iconCache:  make(map[string]*image.RGBA),
	}
}

func (c *Composer) assetPath(rel string) string {
	return filepath.Join(c.assetDir, rel)
}

// Compose draws a complete frame into dst. Layer order is fixed:
// background, forecast panel (weekly or summary), sensor readout,
// date/time, then the status overlay when enabled.
func (c *Composer) Compose(dst *image.RGBA, ct Content) {
	c.drawBackground(dst, ct.BackgroundPath)

	if ct.Modes.ShowWeeklyForecast {
		c.drawWeeklyPanel(dst, ct.Weather)
	} else {
		c.drawSummaryPanel(dst, ct.Weather)
	}

	c.drawSensor(dst, ct.Sensor)
	c.drawClock(dst, ct.Now)

	if ct.Modes.ShowStatusOverlay {
		c.drawStatusOverlay(dst, ct)
	}
}

// ComposeBoot draws the cold-boot banner and progress lines. Config
// problems (missing credentials, no API key) surface here, on the panel
// itself, since a headless device has nowhere else to complain.
func (c *Composer) ComposeBoot(dst *image.RGBA, banner string, lines []string) {
	framebuf.Clear(dst, INK_WHITE)
	drawText(dst, banner, c.width/2, c.height/3, c.getFontFace("big"), INK_BLACK, true)

	y := c.height/3 + 56
	reg := c.getFontFace("reg")
	for _, line := range lines {
		_, y = drawText(dst, line, c.width/2, y+8, reg, INK_BLACK, true)
	}
}

func (c *Composer) drawBackground(dst *image.RGBA, path string) {
	framebuf.Clear(dst, INK_WHITE)
	if path == "" {
		path = c.assetPath(PlaceholderAsset)
	}
	img, err := loadImage(c.imageCache, path)
	if err != nil {
		log.Printf("render: background %s: %v", path, err)
		img, err = loadImage(c.imageCache, c.assetPath(PlaceholderAsset))
		if err != nil {
			// Nothing to draw with; a framed blank beats a torn frame.
			fillPanel(dst, 4, 4, float64(c.width-8), float64(c.height-8))
			return
		}
	}
	drawImageScaled(dst, img, 0, 0, c.width, c.height)
}

func (c *Composer) drawSummaryPanel(dst *image.RGBA, set *weather.Set) {
	x := MARGIN
	y := c.height - BOTTOM_PANEL_H - MARGIN
	w := c.width - 2*MARGIN
	fillPanel(dst, float64(x), float64(y), float64(w), BOTTOM_PANEL_H)

	if set == nil {
		drawText(dst, "no forecast yet", x+w/2, y+BOTTOM_PANEL_H/2-12, c.getFontFace("reg"), INK_GREY, true)
		return
	}

	half := w / 2
	c.drawDaySummary(dst, "TODAY", set.Today, x+24, y+14)
	c.drawDaySummary(dst, "TOMORROW", set.Tomorrow, x+half+24, y+14)
	for yy := y + 14; yy < y+BOTTOM_PANEL_H-14; yy++ {
		dst.SetRGBA(x+half, yy, INK_GREY)
	}
}

func (c *Composer) drawDaySummary(dst *image.RGBA, label string, s weather.Summary, x, y int) {
	reg := c.getFontFace("reg")
	small := c.getFontFace("small")
	big := c.getFontFace("big")

	drawText(dst, label, x, y, small, INK_GREY, false)
	c.drawCategoryIcon(dst, s.Category, x, y+22, ICON_SIZE)

	tx := x + ICON_SIZE + 16
	drawText(dst, fmt.Sprintf("%.0f° / %.0f°", s.TempMax, s.TempMin), tx, y+22, big, INK_BLACK, false)
	line2 := fmt.Sprintf("%s  rain %d%%", strings.ReplaceAll(s.Category.String(), "-", " "), s.PrecipPct)
	drawText(dst, line2, tx, y+62, reg, INK_BLACK, false)
}

func (c *Composer) drawWeeklyPanel(dst *image.RGBA, set *weather.Set) {
	x := MARGIN
	y := c.height - BOTTOM_PANEL_H - MARGIN
	w := c.width - 2*MARGIN
	fillPanel(dst, float64(x), float64(y), float64(w), BOTTOM_PANEL_H)

	if set == nil {
		drawText(dst, "no forecast yet", x+w/2, y+BOTTOM_PANEL_H/2-12, c.getFontFace("reg"), INK_GREY, true)
		return
	}

	small := c.getFontFace("small")
	reg := c.getFontFace("reg")
	col := w / len(set.Week)
	for i, day := range set.Week {
		cx := x + i*col + col/2
		drawText(dst, strings.ToUpper(day.Weekday.String()[:3]), cx, y+10, small, INK_GREY, true)
		c.drawCategoryIcon(dst, day.Category, cx-WEEK_ICON_SIZE/2, y+30, WEEK_ICON_SIZE)
		drawText(dst, fmt.Sprintf("%.0f°", day.TempMax), cx, y+76, reg, INK_BLACK, true)
		drawText(dst, fmt.Sprintf("%.0f°", day.TempMin), cx, y+100, small, INK_GREY, true)
	}
}

func (c *Composer) drawCategoryIcon(dst *image.RGBA, cat weather.Category, x, y, size int) {
	icon, err := loadIcon(c.iconCache, c.assetPath(filepath.Join("icons", cat.IconFile())), size)
	if err != nil {
		// Icon sets are provisioned separately from code; degrade to the
		// category's short name.
		drawText(dst, cat.String(), x, y+size/2-8, c.getFontFace("small"), INK_BLACK, false)
		return
	}
	drawImageAt(dst, icon, x, y)
}

func (c *Composer) drawSensor(dst *image.RGBA, r *sensor.Reading) {
	x := c.width - SENSOR_PANEL_W - MARGIN
	y := MARGIN
	fillPanel(dst, float64(x), float64(y), SENSOR_PANEL_W, SENSOR_PANEL_H)

	reg := c.getFontFace("reg")
	if r == nil {
		drawText(dst, "sensor --", x+SENSOR_PANEL_W/2, y+SENSOR_PANEL_H/2-10, reg, INK_GREY, true)
		return
	}
	text := fmt.Sprintf("%.1f°C  %.0f%%RH", r.TemperatureC, r.HumidityPct)
	drawText(dst, text, x+SENSOR_PANEL_W/2, y+SENSOR_PANEL_H/2-12, reg, INK_BLACK, true)
}

func (c *Composer) drawClock(dst *image.RGBA, now time.Time) {
	clock := c.getFontFace("clock")
	reg := c.getFontFace("reg")

	fillPanel(dst, MARGIN, MARGIN, 260, 96)
	drawText(dst, now.Format("15:04"), MARGIN+20, MARGIN+8, clock, INK_BLACK, false)
	drawText(dst, now.Format("Mon 2 Jan"), MARGIN+20, MARGIN+62, reg, INK_GREY, false)
}

func (c *Composer) drawStatusOverlay(dst *image.RGBA, ct Content) {
	x := c.width - OVERLAY_W - MARGIN
	y := MARGIN + SENSOR_PANEL_H + 12
	fillPanel(dst, float64(x), float64(y), OVERLAY_W, OVERLAY_H)

	small := c.getFontFace("small")
	reg := c.getFontFace("reg")

	tx := x + 14
	ty := y + 12
	_, ty = drawText(dst, "STATUS", tx, ty, reg, INK_BLACK, false)
	drawHLine(dst, tx, x+OVERLAY_W-14, ty+4, INK_GREY)
	ty += 12

	_, ty = drawText(dst, "version "+ct.Version, tx, ty, small, INK_BLACK, false)

	netLine := "offline"
	if ct.Net.OK {
		netLine = fmt.Sprintf("online %dms", ct.Net.RTT.Milliseconds())
	}
	_, ty = drawText(dst, "net "+netLine, tx, ty+4, small, INK_BLACK, false)

	battLine := fmt.Sprintf("batt %.2fV %d%%", ct.Battery.VoltageV, ct.Battery.LevelPct)
	if ct.Battery.Charging {
		battLine += " chg"
	}
	_, ty = drawText(dst, battLine, tx, ty+4, small, INK_BLACK, false)

	if ct.Weather != nil {
		_, ty = drawText(dst, "fetched "+ct.Weather.FetchedAt.Format("15:04"), tx, ty+4, small, INK_GREY, false)
	}

	if ct.PreviewURL != "" {
		c.drawQR(dst, ct.PreviewURL, x+(OVERLAY_W-QR_SIZE)/2, ty+10)
	}
}

// drawQR renders the preview server URL as a QR code so a phone on the
// same network can open the live frame.
func (c *Composer) drawQR(dst *image.RGBA, url string, x, y int) {
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		log.Printf("render: qr: %v", err)
		return
	}
	img := q.Image(QR_SIZE)
	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(img.Bounds())
		for py := img.Bounds().Min.Y; py < img.Bounds().Max.Y; py++ {
			for px := img.Bounds().Min.X; px < img.Bounds().Max.X; px++ {
				rgba.Set(px, py, img.At(px, py))
			}
		}
	}
	drawImageAt(dst, rgba, x, y)
}
