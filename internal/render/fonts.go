package render

import (
	"log"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// FontConfig names a TTF asset and a point size.
type FontConfig struct {
	FontPath string
	FontSize float64
}

// Font roles used by the composer. Paths are relative to the asset dir.
var fonts = map[string]FontConfig{
	"clock": {FontPath: "fonts/Orbitron-ExtraBold.ttf", FontSize: 44},
	"big":   {FontPath: "fonts/Orbitron-ExtraBold.ttf", FontSize: 28},
	"reg":   {FontPath: "fonts/Orbitron-Medium.ttf", FontSize: 18},
	"small": {FontPath: "fonts/Orbitron-Medium.ttf", FontSize: 13},
}

// getFontFace loads a named face from the asset dir, caching in faces.
// A missing or unparsable font degrades to the built-in bitmap face so
// the frame still renders on a half-provisioned device.
func (c *Composer) getFontFace(name string) font.Face {
	if face, ok := c.faces[name]; ok {
		return face
	}

	cfg, ok := fonts[name]
	if !ok {
		return basicfont.Face7x13
	}

	face := font.Face(basicfont.Face7x13)
	if data, err := os.ReadFile(c.assetPath(cfg.FontPath)); err == nil {
		if ttf, err := opentype.Parse(data); err == nil {
			if f, err := opentype.NewFace(ttf, &opentype.FaceOptions{
				Size:    cfg.FontSize,
				DPI:     72,
				Hinting: font.HintingFull,
			}); err == nil {
				face = f
			}
		}
	}
	if face == basicfont.Face7x13 {
		log.Printf("render: font %q unavailable, using fallback face", name)
	}

	c.faces[name] = face
	return face
}
