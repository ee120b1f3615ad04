package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestImageproc(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Imageproc Suite")
}

// sheet draws a white page on a dark background
func sheet(w, h int, page image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 40, G: 45, B: 50, A: 255}}, image.Point{}, draw.Src)
	draw.Draw(img, page, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	return img
}

func uniform(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	return img
}

var _ = Describe("DetectQuad", func() {
	When("a bright page lies on a dark background", func() {
		It("should find the page corners", func() {
			quad, ok := DetectQuad(sheet(200, 160, image.Rect(40, 30, 160, 130)))
			Expect(ok).To(BeTrue())
			Expect(quad.TopLeft.X).To(BeNumerically("~", 40, 2))
			Expect(quad.TopLeft.Y).To(BeNumerically("~", 30, 2))
			Expect(quad.BottomRight.X).To(BeNumerically("~", 160, 2))
			Expect(quad.BottomRight.Y).To(BeNumerically("~", 130, 2))
		})

		It("should scale corners back from the working resolution", func() {
			quad, ok := DetectQuad(sheet(800, 600, image.Rect(100, 100, 700, 500)))
			Expect(ok).To(BeTrue())
			Expect(quad.TopLeft.X).To(BeNumerically("~", 100, 8))
			Expect(quad.BottomRight.Y).To(BeNumerically("~", 500, 8))
		})
	})

	When("the image has no contrast", func() {
		It("should report no quad", func() {
			_, ok := DetectQuad(uniform(100, 100, color.White))
			Expect(ok).To(BeFalse())
		})
	})

	When("the bright region is tiny", func() {
		It("should report no quad", func() {
			_, ok := DetectQuad(sheet(200, 200, image.Rect(10, 10, 20, 20)))
			Expect(ok).To(BeFalse())
		})
	})

	When("the image is nil", func() {
		It("should report no quad", func() {
			_, ok := DetectQuad(nil)
			Expect(ok).To(BeFalse())
		})
	})
})

var _ = Describe("CorrectPerspective", func() {
	It("should return an identical image for the full frame", func() {
		src := sheet(40, 30, image.Rect(10, 10, 30, 20))
		out, err := CorrectPerspective(src, Quad{
			TopLeft:     Point{0, 0},
			TopRight:    Point{40, 0},
			BottomRight: Point{40, 30},
			BottomLeft:  Point{0, 30},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Bounds().Dx()).To(Equal(40))
		Expect(out.Bounds().Dy()).To(Equal(30))
		r, g, b, _ := out.At(15, 15).RGBA()
		Expect([]uint32{r >> 8, g >> 8, b >> 8}).To(Equal([]uint32{255, 255, 255}))
		r, _, _, _ = out.At(2, 2).RGBA()
		Expect(r >> 8).To(Equal(uint32(40)))
	})

	It("should reject a degenerate quad", func() {
		_, err := CorrectPerspective(uniform(10, 10, color.White), Quad{})
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Crop", func() {
	It("should crop to the detected page", func() {
		out, ok := Crop(sheet(200, 160, image.Rect(40, 30, 160, 130)))
		Expect(ok).To(BeTrue())
		Expect(out.Bounds().Dx()).To(BeNumerically("~", 120, 3))
		Expect(out.Bounds().Dy()).To(BeNumerically("~", 100, 3))
		r, _, _, _ := out.At(out.Bounds().Dx()/2, out.Bounds().Dy()/2).RGBA()
		Expect(r >> 8).To(BeNumerically(">", 250))
	})

	It("should pass the original through when nothing is found", func() {
		src := uniform(50, 50, color.Black)
		out, ok := Crop(src)
		Expect(ok).To(BeFalse())
		Expect(out).To(BeIdenticalTo(src))
	})
})

var _ = Describe("Enhance", func() {
	It("should produce a grayscale image of the same size", func() {
		out, err := Enhance(uniform(20, 10, color.RGBA{R: 200, G: 40, B: 40, A: 255}))
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Bounds().Size()).To(Equal(image.Pt(20, 10)))
		r, g, b, _ := out.At(5, 5).RGBA()
		Expect(r).To(Equal(g))
		Expect(g).To(Equal(b))
	})

	It("should fail on an empty image", func() {
		_, err := Enhance(image.NewRGBA(image.Rectangle{}))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Thumbnail", func() {
	var data []byte

	BeforeEach(func() {
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, uniform(400, 200, color.White), nil)).To(Succeed())
		data = buf.Bytes()
	})

	It("should bound the longest side and keep the aspect ratio", func() {
		thumb, err := Thumbnail(data, 100)
		Expect(err).NotTo(HaveOccurred())
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(thumb))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Width).To(Equal(100))
		Expect(cfg.Height).To(Equal(50))
	})

	It("should fail on undecodable data", func() {
		_, err := Thumbnail([]byte("not an image"), 100)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Decode", func() {
	It("should decode a JPEG", func() {
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, uniform(8, 4, color.White), nil)).To(Succeed())
		img, err := Decode(buf.Bytes(), "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		Expect(img.Bounds().Dx()).To(Equal(8))
	})

	It("should reject unknown data", func() {
		_, err := Decode([]byte("plain text"), "text/plain")
		Expect(err).To(MatchError(ErrUnsupportedFormat))
	})

	It("should reject empty data", func() {
		_, err := Decode(nil, "image/png")
		Expect(err).To(MatchError(ErrUnsupportedFormat))
	})

	It("should recognise HEIC headers", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic0000"))).To(BeTrue())
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypisom0000"))).To(BeFalse())
	})
})
