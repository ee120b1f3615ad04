package imageproc

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// Point is a sub-pixel image coordinate
type Point struct {
	X, Y float64
}

func (p Point) dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Quad is a document outline in image coordinates
type Quad struct {
	TopLeft     Point
	TopRight    Point
	BottomRight Point
	BottomLeft  Point
}

// Area returns the area enclosed by the quad
func (q Quad) Area() float64 {
	pts := []Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}

const (
	// detectionSide bounds the working resolution of edge detection
	detectionSide = 256
	// minRegionFraction and maxRegionFraction bound the share of the frame a
	// document region may cover
	minRegionFraction = 0.10
	maxRegionFraction = 0.97
	// minFill is the share of the outline that the region must cover
	minFill = 0.75
)

var errNoQuad = errors.New("no document outline found")

// DetectQuad locates the most prominent bright quadrilateral, typically a
// sheet of paper against a darker background.
func DetectQuad(img image.Image) (Quad, bool) {
	if img == nil || img.Bounds().Dx() < 8 || img.Bounds().Dy() < 8 {
		return Quad{}, false
	}

	bounds := img.Bounds()
	small := imaging.Fit(img, detectionSide, detectionSide, imaging.Box)
	w, h := small.Bounds().Dx(), small.Bounds().Dy()
	scaleX := float64(bounds.Dx()) / float64(w)
	scaleY := float64(bounds.Dy()) / float64(h)

	lum := luminance(small)
	threshold, ok := otsuThreshold(lum)
	if !ok {
		return Quad{}, false
	}

	region := largestRegion(lum, w, h, threshold)
	total := float64(w * h)
	if n := float64(len(region)); n < minRegionFraction*total || n > maxRegionFraction*total {
		return Quad{}, false
	}

	quad := cornersOf(region, w)
	if quad.Area() < minFill*float64(len(region)) || quad.Area() > float64(len(region))/minFill {
		return Quad{}, false
	}

	scale := func(p Point) Point {
		return Point{
			X: float64(bounds.Min.X) + p.X*scaleX,
			Y: float64(bounds.Min.Y) + p.Y*scaleY,
		}
	}
	return Quad{
		TopLeft:     scale(quad.TopLeft),
		TopRight:    scale(Point{quad.TopRight.X + 1, quad.TopRight.Y}),
		BottomRight: scale(Point{quad.BottomRight.X + 1, quad.BottomRight.Y + 1}),
		BottomLeft:  scale(Point{quad.BottomLeft.X, quad.BottomLeft.Y + 1}),
	}, true
}

// Crop corrects the perspective of the detected document. The original
// image is returned when no outline is found or correction fails.
func Crop(img image.Image) (image.Image, bool) {
	quad, ok := DetectQuad(img)
	if !ok {
		return img, false
	}
	corrected, err := CorrectPerspective(img, quad)
	if err != nil {
		return img, false
	}
	return corrected, true
}

func luminance(img *image.NRGBA) []uint8 {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < w; x++ {
			r, g, b := float64(row[x*4]), float64(row[x*4+1]), float64(row[x*4+2])
			out[y*w+x] = uint8(0.299*r + 0.587*g + 0.114*b + 0.5)
		}
	}
	return out
}

// otsuThreshold picks the level that best separates two luminance classes.
// It reports false for images without contrast.
func otsuThreshold(lum []uint8) (uint8, bool) {
	var hist [256]float64
	for _, v := range lum {
		hist[v]++
	}
	total := float64(len(lum))
	var sum float64
	for i, n := range hist {
		sum += float64(i) * n
	}

	var (
		sumB, weightB, best float64
		threshold           int
		found               bool
	)
	for t := 0; t < 256; t++ {
		weightB += hist[t]
		if weightB == 0 {
			continue
		}
		weightF := total - weightB
		if weightF == 0 {
			break
		}
		sumB += float64(t) * hist[t]
		meanB := sumB / weightB
		meanF := (sum - sumB) / weightF
		between := weightB * weightF * (meanB - meanF) * (meanB - meanF)
		if between > best {
			best, threshold, found = between, t, true
		}
	}
	return uint8(threshold), found
}

// largestRegion returns the pixel indexes of the biggest 4-connected
// component brighter than threshold
func largestRegion(lum []uint8, w, h int, threshold uint8) []int {
	visited := make([]bool, len(lum))
	var best []int
	queue := make([]int, 0, len(lum))

	for start := range lum {
		if visited[start] || lum[start] <= threshold {
			continue
		}
		queue = queue[:0]
		queue = append(queue, start)
		visited[start] = true
		for i := 0; i < len(queue); i++ {
			p := queue[i]
			x, y := p%w, p/w
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if n[0] < 0 || n[0] >= w || n[1] < 0 || n[1] >= h {
					continue
				}
				q := n[1]*w + n[0]
				if !visited[q] && lum[q] > threshold {
					visited[q] = true
					queue = append(queue, q)
				}
			}
		}
		if len(queue) > len(best) {
			best = append(best[:0:0], queue...)
		}
	}
	return best
}

// cornersOf takes the extreme points of the region along both diagonals
func cornersOf(region []int, w int) Quad {
	var q Quad
	minSum, maxSum := math.Inf(1), math.Inf(-1)
	minDiff, maxDiff := math.Inf(1), math.Inf(-1)
	for _, p := range region {
		pt := Point{X: float64(p % w), Y: float64(p / w)}
		if s := pt.X + pt.Y; s < minSum {
			minSum, q.TopLeft = s, pt
		}
		if s := pt.X + pt.Y; s > maxSum {
			maxSum, q.BottomRight = s, pt
		}
		if d := pt.X - pt.Y; d > maxDiff {
			maxDiff, q.TopRight = d, pt
		}
		if d := pt.X - pt.Y; d < minDiff {
			minDiff, q.BottomLeft = d, pt
		}
	}
	return q
}

// CorrectPerspective maps the quad onto an upright rectangle whose sides
// match the longer of each pair of opposite quad edges
func CorrectPerspective(img image.Image, q Quad) (image.Image, error) {
	width := int(math.Round(math.Max(q.TopLeft.dist(q.TopRight), q.BottomLeft.dist(q.BottomRight))))
	height := int(math.Round(math.Max(q.TopLeft.dist(q.BottomLeft), q.TopRight.dist(q.BottomRight))))
	if width < 2 || height < 2 {
		return nil, fmt.Errorf("correcting perspective: %w", errNoQuad)
	}

	maxX, maxY := float64(width), float64(height)
	h, err := solveHomography(
		[4]Point{{0, 0}, {maxX, 0}, {maxX, maxY}, {0, maxY}},
		[4]Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft},
	)
	if err != nil {
		return nil, fmt.Errorf("correcting perspective: %w", err)
	}

	src := imaging.Clone(img)
	offset := img.Bounds().Min
	dst := imaging.New(width, height, color.White)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			u, v := float64(x)+0.5, float64(y)+0.5
			den := h[6]*u + h[7]*v + 1
			if den == 0 {
				continue
			}
			sx := (h[0]*u+h[1]*v+h[2])/den - float64(offset.X) - 0.5
			sy := (h[3]*u+h[4]*v+h[5])/den - float64(offset.Y) - 0.5
			dst.SetNRGBA(x, y, bilinear(src, sx, sy))
		}
	}
	return dst, nil
}

// solveHomography finds the projective transform taking each from point to
// the matching to point
func solveHomography(from, to [4]Point) ([8]float64, error) {
	var m [8][9]float64
	for i := 0; i < 4; i++ {
		u, v := from[i].X, from[i].Y
		x, y := to[i].X, to[i].Y
		m[2*i] = [9]float64{u, v, 1, 0, 0, 0, -u * x, -v * x, x}
		m[2*i+1] = [9]float64{0, 0, 0, u, v, 1, -u * y, -v * y, y}
	}

	for col := 0; col < 8; col++ {
		pivot := col
		for row := col + 1; row < 8; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return [8]float64{}, errors.New("degenerate quad")
		}
		m[col], m[pivot] = m[pivot], m[col]
		for row := 0; row < 8; row++ {
			if row == col {
				continue
			}
			f := m[row][col] / m[col][col]
			for k := col; k < 9; k++ {
				m[row][k] -= f * m[col][k]
			}
		}
	}

	var h [8]float64
	for i := range h {
		h[i] = m[i][8] / m[i][i]
	}
	return h, nil
}

func bilinear(src *image.NRGBA, x, y float64) color.NRGBA {
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	x = math.Max(0, math.Min(x, float64(w-1)))
	y = math.Max(0, math.Min(y, float64(h-1)))
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	fx, fy := x-float64(x0), y-float64(y0)

	at := func(px, py int) []uint8 {
		i := py*src.Stride + px*4
		return src.Pix[i : i+4]
	}
	a, b, c, d := at(x0, y0), at(x1, y0), at(x0, y1), at(x1, y1)
	var out [4]uint8
	for k := 0; k < 4; k++ {
		top := float64(a[k])*(1-fx) + float64(b[k])*fx
		bottom := float64(c[k])*(1-fx) + float64(d[k])*fx
		out[k] = uint8(top*(1-fy) + bottom*fy + 0.5)
	}
	return color.NRGBA{R: out[0], G: out[1], B: out[2], A: out[3]}
}
