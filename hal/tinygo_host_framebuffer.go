//go:build tinygo && !baremetal

package hal

// tinyGoHostFramebuffer has nowhere to present; it only keeps pixels.
type tinyGoHostFramebuffer struct {
	w      int
	h      int
	stride int
	buf    []byte
}

func newTinyGoHostFramebuffer(w, h int) *tinyGoHostFramebuffer {
	return &tinyGoHostFramebuffer{w: w, h: h, stride: w * 2, buf: make([]byte, w*h*2)}
}

func (f *tinyGoHostFramebuffer) Width() int          { return f.w }
func (f *tinyGoHostFramebuffer) Height() int         { return f.h }
func (f *tinyGoHostFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *tinyGoHostFramebuffer) StrideBytes() int    { return f.stride }
func (f *tinyGoHostFramebuffer) Buffer() []byte      { return f.buf }
func (f *tinyGoHostFramebuffer) Present() error      { return nil }

func (f *tinyGoHostFramebuffer) ClearRGB(r, g, b uint8) {
	fillRGB565(f.buf, rgb565(r, g, b))
}
