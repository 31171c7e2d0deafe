package epd

import (
	"image"
	"image/png"
	"os"
	"sync"
)

// Fake is an in-memory panel for tests and -dry-run. It optionally writes
// each committed frame to a PNG so a frame can be inspected on a desk
// instead of a desk-less device.
type Fake struct {
	mu sync.Mutex

	Fulls    int
	Partials int
	Sleeps   int
	Inits    int

	Last *image.RGBA

	// SnapshotPath, when set, receives every committed frame as PNG.
	SnapshotPath string

	// Err, when set, is returned by every refresh.
	Err error
}

func (f *Fake) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Inits++
	return nil
}

func (f *Fake) RefreshFull(img *image.RGBA) error {
	return f.refresh(img, true)
}

func (f *Fake) RefreshPartial(img *image.RGBA) error {
	return f.refresh(img, false)
}

func (f *Fake) refresh(img *image.RGBA, full bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if full {
		f.Fulls++
	} else {
		f.Partials++
	}
	f.Last = img
	if f.SnapshotPath != "" {
		if w, err := os.Create(f.SnapshotPath); err == nil {
			png.Encode(w, img)
			w.Close()
		}
	}
	return nil
}

func (f *Fake) Sleep() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sleeps++
	return nil
}

func (f *Fake) Close() error { return nil }
