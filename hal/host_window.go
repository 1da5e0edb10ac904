//go:build !tinygo && cgo

package hal

import (
	"errors"
	"image"

	"trt/internal/buildinfo"

	"github.com/hajimehoshi/ebiten/v2"
)

// WindowConfig controls the desktop window runner.
type WindowConfig struct {
	HAL   Options
	Title string
	Scale int
}

// RunWindow starts a desktop window that displays the framebuffer and
// advances the tick source once per frame. It blocks until the window
// closes or the step function stops it.
func RunWindow(newApp func(HAL) func() error, cfg WindowConfig) error {
	if cfg.Scale <= 0 {
		cfg.Scale = 2
	}
	if cfg.Title == "" {
		cfg.Title = "trt"
	}

	h := New(cfg.HAL).(*hostHAL)
	step := newApp(h)

	g := &hostGame{h: h, step: step}
	ebiten.SetWindowTitle(cfg.Title + " (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*cfg.Scale, h.fb.height*cfg.Scale)
	ebiten.SetTPS(60)
	err := ebiten.RunGame(g)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

type hostGame struct {
	h       *hostHAL
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	shown   uint64
	step    func() error
}

func (g *hostGame) Update() error {
	g.h.t.step()
	if g.step != nil {
		if err := g.step(); err != nil {
			if errors.Is(err, ErrStop) {
				return ebiten.Termination
			}
			return err
		}
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	// Only convert when the OS presented a new frame.
	if n := fb.snapshotRGB565(g.scratch); n != g.shown {
		g.shown = n
		src := g.scratch
		dst := g.img.Pix
		for i := 0; i+1 < len(src) && i/2*4+3 < len(dst); i += 2 {
			r, gg, b := rgb888From565(uint16(src[i]) | uint16(src[i+1])<<8)
			j := (i / 2) * 4
			dst[j+0] = r
			dst[j+1] = gg
			dst[j+2] = b
			dst[j+3] = 0xFF
		}
		g.fbImg.WritePixels(g.img.Pix)
	}
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
