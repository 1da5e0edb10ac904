//go:build tinygo && baremetal

package hal

// stubFramebuffer reports a geometry but owns no pixels.
type stubFramebuffer struct {
	w int
	h int
}

func (f *stubFramebuffer) Width() int             { return f.w }
func (f *stubFramebuffer) Height() int            { return f.h }
func (f *stubFramebuffer) Format() PixelFormat    { return PixelFormatRGB565 }
func (f *stubFramebuffer) StrideBytes() int       { return f.w * 2 }
func (f *stubFramebuffer) Buffer() []byte         { return nil }
func (f *stubFramebuffer) ClearRGB(r, g, b uint8) {}
func (f *stubFramebuffer) Present() error         { return ErrNotImplemented }
