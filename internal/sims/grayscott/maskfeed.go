package grayscott

import (
	"context"
	"image"
	"io"
	"strings"

	"github.com/gogpu/simviz"
	"github.com/gogpu/simviz/internal/gpu"
	"github.com/gogpu/simviz/internal/mask"
)

// maskFeed tracks the image or camera modulating the feed rate.
type maskFeed struct {
	source mask.FrameSource
	frame  image.Image
	refit  bool
	active bool
	// webcamDisabled is set for the session once a camera failed.
	webcamDisabled bool
}

func (m *maskFeed) enabled() uint32 {
	if m.active {
		return 1
	}
	return 0
}

func (m *maskFeed) close() {
	if c, ok := m.source.(io.Closer); ok {
		_ = c.Close()
	}
	m.source = nil
}

func isMaskSetting(name string) bool { return strings.HasPrefix(name, "mask_") }

// applyMask reconciles the mask source with the settings. prev is the
// configuration before the change.
func (s *Simulation) applyMask(prev Settings) error {
	cur := s.settings
	if cur.MaskFitMode != prev.MaskFitMode {
		s.mask.refit = true
	}
	if cur.MaskSource == prev.MaskSource && cur.MaskImagePath == prev.MaskImagePath && s.mask.source != nil {
		return nil
	}
	switch cur.MaskSource {
	case SourceImage:
		if cur.MaskImagePath == "" {
			s.mask.close()
			s.mask.active = false
			return nil
		}
		img, err := mask.Load(cur.MaskImagePath)
		if err != nil {
			s.settings.MaskImagePath = prev.MaskImagePath
			s.settings.MaskSource = prev.MaskSource
			return simviz.Wrap(simviz.KindInvalidSetting, err, "mask image %q", cur.MaskImagePath)
		}
		s.mask.close()
		s.mask.source = mask.NewStaticSource(img)
	case SourceWebcam:
		if s.mask.webcamDisabled {
			s.settings.MaskSource = prev.MaskSource
			return simviz.Errorf(simviz.KindWebcamUnavailable, "webcam disabled for this session")
		}
		src, err := mask.OpenCamera(0)
		if err != nil {
			s.mask.webcamDisabled = true
			s.settings.MaskSource = prev.MaskSource
			return err
		}
		s.mask.close()
		s.mask.source = src
	default:
		s.mask.close()
		s.mask.frame = nil
		s.mask.active = false
	}
	return nil
}

// pollMask pulls a new frame from the source and uploads the fitted mask
// when the frame, the fit mode or the field size changed.
func (s *Simulation) pollMask() error {
	if s.mask.source != nil {
		img, err := s.mask.source.Frame(context.Background())
		if err != nil {
			if simviz.KindOf(err) == simviz.KindWebcamUnavailable {
				s.mask.webcamDisabled = s.settings.MaskSource == SourceWebcam
				s.mask.close()
				s.mask.active = false
				s.settings.MaskSource = SourceNone
				s.sync()
			}
			return err
		}
		if img != nil {
			s.mask.frame = img
			s.mask.refit = true
		}
	}
	if !s.mask.refit || s.mask.frame == nil {
		return nil
	}
	field := mask.Fit(s.mask.frame, int(s.Width), int(s.Height), s.settings.fitOptions())
	if err := s.Writer().WriteBuffer(s.maskBuf, 0, gpu.Float32Bytes(field)); err != nil {
		return err
	}
	s.mask.refit = false
	if !s.mask.active {
		s.mask.active = true
		s.sync()
	}
	return nil
}
