package mask

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gogpu/simviz"
)

// FrameSource yields images for a live mask. Frame returns the latest
// image, or nil when nothing changed since the previous call.
type FrameSource interface {
	Frame(ctx context.Context) (image.Image, error)
}

// StaticSource yields one image once.
type StaticSource struct {
	img  image.Image
	sent bool
}

// NewStaticSource wraps img.
func NewStaticSource(img image.Image) *StaticSource { return &StaticSource{img: img} }

// Frame returns the image on the first call and nil afterwards.
func (s *StaticSource) Frame(context.Context) (image.Image, error) {
	if s.sent {
		return nil, nil
	}
	s.sent = true
	return s.img, nil
}

// FileSource re-decodes an image file whenever its modification time
// changes, which lets an external capture tool feed frames through disk.
type FileSource struct {
	path string
	mod  time.Time
}

// NewFileSource watches path.
func NewFileSource(path string) *FileSource { return &FileSource{path: filepath.Clean(path)} }

// Frame returns the file's image if it changed since the last call.
func (s *FileSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := os.Stat(s.path)
	if err != nil {
		return nil, simviz.Wrap(simviz.KindWebcamUnavailable, err, "frame file %s", s.path)
	}
	if !st.ModTime().After(s.mod) {
		return nil, nil
	}
	img, err := Load(s.path)
	if err != nil {
		// A writer may be mid-update; retry on the next frame.
		return nil, nil
	}
	s.mod = st.ModTime()
	return img, nil
}

// CameraOpener opens a capture device by index.
type CameraOpener func(device int) (FrameSource, error)

var (
	cameraMu sync.RWMutex
	camera   CameraOpener
)

// SetCamera installs the capture backend used by OpenCamera. Hosts with a
// camera stack register it at startup; nil removes it.
func SetCamera(open CameraOpener) {
	cameraMu.Lock()
	camera = open
	cameraMu.Unlock()
}

// OpenCamera opens a capture device, failing with KindWebcamUnavailable
// when no backend is installed or the device cannot be opened.
func OpenCamera(device int) (FrameSource, error) {
	cameraMu.RLock()
	open := camera
	cameraMu.RUnlock()
	if open == nil {
		return nil, simviz.Errorf(simviz.KindWebcamUnavailable, "no capture backend")
	}
	src, err := open(device)
	if err != nil {
		return nil, simviz.Wrap(simviz.KindWebcamUnavailable, err, "open camera %d", device)
	}
	return src, nil
}
