package decode

import (
	"time"

	intImage "github.com/gogpu/preview/internal/image"
)

// LoadStill decodes a still image and downscales it to fit maxW x maxH.
// The result carries the image's full decoded dimensions as the source size.
// Loading time is reported as Packet and downscaling as Scale.
func LoadStill(path string, maxW, maxH int) (Result, error) {
	start := time.Now()
	img, err := intImage.Load(path)
	if err != nil {
		return Result{}, err
	}
	loaded := time.Since(start)

	b := img.Bounds()
	start = time.Now()
	scaled := intImage.FitTo(img, maxW, maxH)

	return Result{
		Image:        scaled,
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
		Timings:      Timings{Packet: loaded, Scale: time.Since(start)},
	}, nil
}
