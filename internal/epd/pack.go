package epd

import (
	"fmt"
	"image"
)

// Pack converts an RGBA frame into the panel's 1bpp format, MSB first,
// eight horizontal pixels per byte, bit set for white. Pixels darker than
// the luminance threshold come out black; e-paper has no grey levels in
// this mode, so the composer is expected to dither or stick to solids.
func Pack(img *image.RGBA, width, height int) ([]byte, error) {
	b := img.Bounds()
	if b.Dx() != width || b.Dy() != height {
		return nil, fmt.Errorf("epd: frame is %dx%d, panel is %dx%d", b.Dx(), b.Dy(), width, height)
	}
	if width%8 != 0 {
		return nil, fmt.Errorf("epd: width %d not a multiple of 8", width)
	}

	out := make([]byte, width/8*height)
	for y := 0; y < height; y++ {
		row := y * img.Stride
		for x := 0; x < width; x++ {
			o := row + x*4
			// Integer luma, same weights as image/color's grayscale model.
			luma := (299*int(img.Pix[o]) + 587*int(img.Pix[o+1]) + 114*int(img.Pix[o+2])) / 1000
			if luma >= 128 {
				out[y*(width/8)+x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	return out, nil
}
