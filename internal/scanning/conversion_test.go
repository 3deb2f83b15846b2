package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func encoded(encode func(*bytes.Buffer, image.Image) error) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.White)
	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

var _ = Describe("prepareImageData", func() {
	DescribeTable("converts supported images to PNG",
		func(data []byte, contentType string) {
			out, err := prepareImageData(data, contentType)
			Expect(err).NotTo(HaveOccurred())
			_, format, err := image.DecodeConfig(bytes.NewReader(out))
			Expect(err).NotTo(HaveOccurred())
			Expect(format).To(Equal("png"))
		},
		Entry("JPEG", encoded(func(b *bytes.Buffer, img image.Image) error { return jpeg.Encode(b, img, nil) }), "image/jpeg"),
		Entry("GIF", encoded(func(b *bytes.Buffer, img image.Image) error { return gif.Encode(b, img, nil) }), "image/gif"),
		Entry("PNG passes through", pngBytes(), "image/png"),
		Entry("missing content type", encoded(func(b *bytes.Buffer, img image.Image) error { return jpeg.Encode(b, img, nil) }), ""),
	)

	DescribeTable("reports undecodable input as unreadable",
		func(data []byte, contentType string) {
			_, err := prepareImageData(data, contentType)
			Expect(err).To(MatchError(ErrUnreadable))
		},
		Entry("empty", []byte{}, "image/jpeg"),
		Entry("garbage JPEG", []byte("nope"), "image/jpeg"),
		Entry("garbage PNG", []byte("nope"), "image/png"),
		Entry("garbage PDF", []byte("%PDF-nope"), "application/pdf"),
	)
})

var _ = Describe("isHEICFormat", func() {
	It("detects the ftyp brand", func() {
		header := append([]byte{0, 0, 0, 24}, []byte("ftypheic")...)
		Expect(isHEICFormat(header)).To(BeTrue())
	})

	It("ignores other files", func() {
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
		Expect(isHEICFormat(pngBytes())).To(BeFalse())
	})
})
