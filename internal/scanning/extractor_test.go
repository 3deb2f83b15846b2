package scanning

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/expensomatic/internal/expense"
	"github.com/zombor/expensomatic/internal/receipt"
)

type scanResponse struct {
	data *ReceiptData
	err  error
}

// mockScanner replays responses in order and repeats the last one
type mockScanner struct {
	responses   []scanResponse
	calls       int
	contentType string
	deadline    bool
}

func (m *mockScanner) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error) {
	m.contentType = contentType
	_, m.deadline = ctx.Deadline()
	r := m.responses[min(m.calls, len(m.responses)-1)]
	m.calls++
	return r.data, r.err
}

func (m *mockScanner) Close() error {
	return nil
}

func pngBytes() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func writeReceipt(dir, name string, content []byte) receipt.File {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, content, 0644)).To(Succeed())
	return receipt.NewFile(path, time.Now())
}

var goodData = &ReceiptData{
	Amount:      "12.50",
	Currency:    "GBP",
	Category:    "Lunch",
	Date:        "2024-05-30",
	Description: "Pret",
}

var _ = Describe("Extractor", func() {
	var (
		tmpDir  string
		scanner *mockScanner
		cfg     ExtractorConfig
		file    receipt.File
		ctx     context.Context
		result  expense.Result
		err     error
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		scanner = &mockScanner{responses: []scanResponse{{data: goodData}}}
		cfg = ExtractorConfig{Attempts: 2, Timeout: time.Minute}
		file = writeReceipt(tmpDir, "lunch.png", pngBytes())
		ctx = context.Background()
	})

	JustBeforeEach(func() {
		extractor := NewExtractor(scanner, cfg, discardLogger)
		result, err = extractor.Analyze(ctx, file)
	})

	When("the scanner answers", func() {
		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns a success", func() {
			Expect(result.OK()).To(BeTrue())
			Expect(result.Success.Amount.StringFixed(2)).To(Equal("12.50"))
			Expect(result.Success.Currency).To(Equal(expense.GBP))
			Expect(result.Success.Category).To(Equal(expense.Lunch))
		})

		It("sends PNG with a per-call deadline", func() {
			Expect(scanner.contentType).To(Equal("image/png"))
			Expect(scanner.deadline).To(BeTrue())
		})
	})

	When("the file is not an image", func() {
		BeforeEach(func() {
			file = writeReceipt(tmpDir, "broken.jpg", []byte("not a jpeg"))
		})

		It("fails as unreadable without calling the scanner", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Failure.Reason).To(Equal(expense.UnreadableFile))
			Expect(scanner.calls).To(BeZero())
		})
	})

	When("the file has vanished", func() {
		BeforeEach(func() {
			Expect(os.Remove(file.Path)).To(Succeed())
		})

		It("fails as unreadable", func() {
			Expect(result.Failure.Reason).To(Equal(expense.UnreadableFile))
			Expect(result.Failure.Receipt).To(Equal("lunch.png"))
		})
	})

	DescribeTable("maps receipt-level errors to failures",
		func(scanErr error, reason expense.FailureReason) {
			scanner.responses = []scanResponse{{err: scanErr}}
			res, err := NewExtractor(scanner, cfg, discardLogger).Analyze(context.Background(), file)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Failure).NotTo(BeNil())
			Expect(res.Failure.Reason).To(Equal(reason))
		},
		Entry("refusal", ErrRefused, expense.ModelRefused),
		Entry("malformed", ErrMalformed, expense.MalformedResponse),
		Entry("unreadable", ErrUnreadable, expense.UnreadableFile),
		Entry("bad request", &StatusError{Provider: "openai", StatusCode: 400, Body: "invalid image"}, expense.ModelRefused),
	)

	When("the answer is missing its currency", func() {
		BeforeEach(func() {
			bad := *goodData
			bad.Currency = "XYZ"
			scanner.responses = []scanResponse{{data: &bad}}
		})

		It("is malformed", func() {
			Expect(result.Failure.Reason).To(Equal(expense.MalformedResponse))
		})
	})

	When("a transient error clears on retry", func() {
		BeforeEach(func() {
			scanner.responses = []scanResponse{
				{err: &StatusError{Provider: "openai", StatusCode: 503}},
				{data: goodData},
			}
		})

		It("succeeds on the second attempt", func() {
			Expect(result.OK()).To(BeTrue())
			Expect(scanner.calls).To(Equal(2))
		})
	})

	When("transient errors exhaust the budget", func() {
		BeforeEach(func() {
			scanner.responses = []scanResponse{{err: context.DeadlineExceeded}}
		})

		It("fails as a timeout after every attempt", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Failure.Reason).To(Equal(expense.Timeout))
			Expect(scanner.calls).To(Equal(2))
		})
	})

	When("the service cannot be reached", func() {
		BeforeEach(func() {
			scanner.responses = []scanResponse{{err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}}
		})

		It("returns a fatal error after the budget", func() {
			Expect(err).To(MatchError(ErrUnavailable))
			Expect(scanner.calls).To(Equal(2))
		})
	})

	When("connecting outlasts the call deadline", func() {
		BeforeEach(func() {
			scanner.responses = []scanResponse{{err: &net.OpError{Op: "dial", Net: "tcp", Err: os.ErrDeadlineExceeded}}}
		})

		It("fails as a timeout instead of stopping the run", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Failure.Reason).To(Equal(expense.Timeout))
			Expect(scanner.calls).To(Equal(2))
		})
	})

	When("the credentials are rejected", func() {
		BeforeEach(func() {
			scanner.responses = []scanResponse{{err: &StatusError{Provider: "openai", StatusCode: 401, Body: "bad key"}}}
		})

		It("returns a fatal error without retrying", func() {
			Expect(err).To(MatchError(ErrUnavailable))
			Expect(scanner.calls).To(Equal(1))
		})
	})

	When("the context is cancelled", func() {
		BeforeEach(func() {
			var cancel context.CancelFunc
			ctx, cancel = context.WithCancel(context.Background())
			cancel()
			scanner.responses = []scanResponse{{err: context.Canceled}}
		})

		It("returns the context error", func() {
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})
