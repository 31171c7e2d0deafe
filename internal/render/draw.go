package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Panel palette. The panel is 1-bit, so grey thresholds to white on
// hardware; it still reads as grey on the preview server.
var (
	INK_BLACK = color.RGBA{0, 0, 0, 255}
	INK_WHITE = color.RGBA{255, 255, 255, 255}
	INK_GREY  = color.RGBA{128, 128, 128, 255}
)

// drawText draws a string at (x,y) using the given face and color. With
// center set, x is the center of the string. Returns the finishing
// coordinates so callers can chain runs on one baseline.
func drawText(img *image.RGBA, text string, posX, posY int, face font.Face, clr color.Color, center bool) (finishX, finishY int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(clr),
		Face: face,
	}
	metrics := face.Metrics()

	x := posX
	if center {
		x = posX - d.MeasureString(text).Round()/2
	}
	y := posY + metrics.Ascent.Round()

	d.Dot = fixed.P(x, y)
	d.DrawString(text)

	finishX = x + d.MeasureString(text).Round()
	finishY = posY + metrics.Ascent.Round() + metrics.Descent.Round()
	return
}

// loadImage decodes an image file into RGBA, caching by path. SVG files
// are rasterized at their intrinsic size.
func loadImage(cache map[string]*image.RGBA, filePath string) (*image.RGBA, error) {
	if cached, ok := cache[filePath]; ok {
		return cached, nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var img image.Image
	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".png":
		img, err = png.Decode(f)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(f)
	case ".gif":
		img, err = gif.Decode(f)
	case ".svg":
		rgba, svgErr := rasterizeSVG(f, 0, 0)
		if svgErr != nil {
			return nil, svgErr
		}
		cache[filePath] = rgba
		return rgba, nil
	default:
		return nil, fmt.Errorf("unsupported image format: %s", ext)
	}
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	cache[filePath] = rgba
	return rgba, nil
}

// loadIcon rasterizes an SVG at the requested size, cached by path+size.
func loadIcon(cache map[string]*image.RGBA, filePath string, size int) (*image.RGBA, error) {
	key := fmt.Sprintf("%s@%d", filePath, size)
	if cached, ok := cache[key]; ok {
		return cached, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	rgba, err := rasterizeSVG(bytes.NewReader(data), size, size)
	if err != nil {
		return nil, err
	}
	cache[key] = rgba
	return rgba, nil
}

func rasterizeSVG(r io.Reader, w, h int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(r)
	if err != nil {
		return nil, err
	}
	if w == 0 || h == 0 {
		w = int(icon.ViewBox.W)
		h = int(icon.ViewBox.H)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return rgba, nil
}

// drawImageAt composites src onto dst with its top-left at (x,y).
func drawImageAt(dst *image.RGBA, src *image.RGBA, x, y int) {
	r := src.Bounds().Add(image.Pt(x, y).Sub(src.Bounds().Min))
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Over)
}

// drawImageScaled composites src stretched to w x h at (x,y). Nearest
// neighbor; background photos are pre-sized, this is the fallback.
func drawImageScaled(dst *image.RGBA, src *image.RGBA, x, y, w, h int) {
	sb := src.Bounds()
	if sb.Dx() == w && sb.Dy() == h {
		drawImageAt(dst, src, x, y)
		return
	}
	for dy := 0; dy < h; dy++ {
		sy := sb.Min.Y + dy*sb.Dy()/h
		for dx := 0; dx < w; dx++ {
			sx := sb.Min.X + dx*sb.Dx()/w
			dst.Set(x+dx, y+dy, src.At(sx, sy))
		}
	}
}

// fillPanel draws a rounded white panel with a black border, the chrome
// behind every text block so it stays readable over photos.
func fillPanel(dst *image.RGBA, x, y, w, h float64) {
	gc := draw2dimg.NewGraphicContext(dst)
	gc.SetFillColor(INK_WHITE)
	gc.SetStrokeColor(INK_BLACK)
	gc.SetLineWidth(2)
	roundedRectPath(gc, x, y, w, h, 8)
	gc.FillStroke()
}

func roundedRectPath(gc *draw2dimg.GraphicContext, x, y, w, h, r float64) {
	gc.MoveTo(x+r, y)
	gc.LineTo(x+w-r, y)
	gc.ArcTo(x+w-r, y+r, r, r, -math.Pi/2, math.Pi/2)
	gc.LineTo(x+w, y+h-r)
	gc.ArcTo(x+w-r, y+h-r, r, r, 0, math.Pi/2)
	gc.LineTo(x+r, y+h)
	gc.ArcTo(x+r, y+h-r, r, r, math.Pi/2, math.Pi/2)
	gc.LineTo(x, y+r)
	gc.ArcTo(x+r, y+r, r, r, math.Pi, math.Pi/2)
	gc.Close()
}

// drawHLine draws a 1px horizontal divider.
func drawHLine(dst *image.RGBA, x1, x2, y int, clr color.RGBA) {
	for x := x1; x <= x2; x++ {
		dst.SetRGBA(x, y, clr)
	}
}
