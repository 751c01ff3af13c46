package effects

import "fmt"

// Kind selects the virtual background treatment applied behind the subject.
type Kind uint8

const (
	// KindNone leaves the background untouched.
	KindNone Kind = iota
	// KindAscii renders the background as ASCII art.
	KindAscii
	// KindCanny renders the background with edge detection.
	KindCanny
	// KindBlur blurs the background.
	KindBlur
	// KindBlack blacks out the background.
	KindBlack
	// KindImage replaces the background with a still image.
	KindImage
	// KindSegmentedSubject keeps only the segmented subject, removing the
	// background entirely.
	KindSegmentedSubject
)

// String returns the kind's wire/display name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindAscii:
		return "ascii"
	case KindCanny:
		return "canny"
	case KindBlur:
		return "blur"
	case KindBlack:
		return "black"
	case KindImage:
		return "image"
	case KindSegmentedSubject:
		return "segmented-subject"
	default:
		return "unknown"
	}
}

// ParseKind converts a display name back into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindNone, KindAscii, KindCanny, KindBlur, KindBlack, KindImage, KindSegmentedSubject} {
		if k.String() == s {
			return k, nil
		}
	}
	return KindNone, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// VideoQuality is a capture quality preset.
type VideoQuality string

const (
	Quality360p VideoQuality = "360p"
	Quality540p VideoQuality = "540p"
	Quality720p VideoQuality = "720p"
)

// Constraints returns the capture constraints for the preset: frame width and
// height in pixels, frame rate, and maximum bandwidth in kbps.
func (q VideoQuality) Constraints() (width, height, fps, maxBandwidthKbps int) {
	switch q {
	case Quality540p:
		return 960, 540, 15, 14000
	case Quality720p:
		return 1280, 720, 15, 14000
	default:
		return 640, 360, 15, 6000
	}
}

// BackgroundQuality selects the working resolution of the virtual background
// processor. Higher values cost more CPU.
type BackgroundQuality int

const (
	// BackgroundQualityDefault is the cheapest setting.
	BackgroundQualityDefault BackgroundQuality = 0
	// BackgroundQualityMax is the most expensive setting.
	BackgroundQualityMax BackgroundQuality = 4
)

var backgroundResolutions = [...]int{300, 450, 600, 750, 900}

// Resolution returns the processing resolution in pixels for the quality
// level. Out-of-range values clamp.
func (q BackgroundQuality) Resolution() int {
	if q < BackgroundQualityDefault {
		q = BackgroundQualityDefault
	}
	if q > BackgroundQualityMax {
		q = BackgroundQualityMax
	}
	return backgroundResolutions[q]
}

// Frame is one raw video frame flowing through the pipeline. Data layout is
// whatever the transport and processors agree on; this package only routes
// frames, it never inspects pixels.
type Frame struct {
	Width  int
	Height int
	Data   []byte
}
