package text

import (
	"image"
	"math/bits"

	"golang.org/x/image/draw"
)

// AverageHash is a 64-bit perceptual hash of img: the picture is scaled to
// 8x8 gray and each bit says whether a cell is brighter than the mean.
func AverageHash(img image.Image) uint64 {
	if img == nil || img.Bounds().Empty() {
		return 0
	}

	small := image.NewGray(image.Rect(0, 0, 8, 8))
	draw.ApproxBiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var sum int
	for _, v := range small.Pix {
		sum += int(v)
	}
	mean := sum / len(small.Pix)

	var hash uint64
	for i, v := range small.Pix {
		if int(v) > mean {
			hash |= 1 << uint(i)
		}
	}
	return hash
}

// Hamming counts the differing bits of two hashes.
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}
