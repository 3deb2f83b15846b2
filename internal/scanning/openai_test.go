package scanning

import (
	"context"
	"encoding/json"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}, "finish_reason": "stop"},
		},
	}
}

var _ = Describe("OpenAI", func() {
	var (
		server  *ghttp.Server
		scanner *OpenAI
		data    *ReceiptData
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		scanner, newErr = NewOpenAI("sk-test", server.URL()+"/v1/", "gpt-4o")
		Expect(newErr).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		data, err = scanner.ScanReceipt(context.Background(), []byte("png-bytes"), "image/png")
	})

	When("the model answers with JSON", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/v1/chat/completions"),
				ghttp.VerifyHeaderKV("Authorization", "Bearer sk-test"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					var body openAIRequest
					Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
					Expect(body.Model).To(Equal("gpt-4o"))
					Expect(body.ResponseFormat).To(HaveKeyWithValue("type", "json_object"))
					Expect(body.Messages).To(HaveLen(1))
					parts := body.Messages[0].Content
					Expect(parts).To(HaveLen(2))
					Expect(parts[0].Text).To(ContainSubstring("Office Supplies"))
					Expect(parts[1].ImageURL.URL).To(Equal("data:image/png;base64,cG5nLWJ5dGVz"))
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, chatCompletion(
					`{"amount": 8.40, "currency": "GBP", "category": "Taxi", "description": "Uber", "date": "2024-05-28"}`,
				)),
			))
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns the parsed fields", func() {
			Expect(data.Amount).To(Equal("8.40"))
			Expect(data.Category).To(Equal("Taxi"))
			Expect(data.Date).To(Equal("2024-05-28"))
		})
	})

	When("the model refuses", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{
				"choices": []map[string]any{
					{"message": map[string]any{"content": nil, "refusal": "I can't help with that."}},
				},
			}))
		})

		It("returns ErrRefused", func() {
			Expect(err).To(MatchError(ErrRefused))
		})
	})

	When("the answer is missing a field", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, chatCompletion(
				`{"amount": 8.40, "category": "Taxi", "date": "2024-05-28"}`,
			)))
		})

		It("returns ErrMalformed", func() {
			Expect(err).To(MatchError(ErrMalformed))
		})
	})

	When("there are no choices", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, map[string]any{"choices": []any{}}))
		})

		It("returns ErrMalformed", func() {
			Expect(err).To(MatchError(ErrMalformed))
		})
	})

	When("the API rejects the key", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusUnauthorized, map[string]any{
				"error": map[string]any{"message": "Incorrect API key provided", "type": "invalid_request_error"},
			}))
		})

		It("returns a StatusError with the API message", func() {
			var statusErr *StatusError
			Expect(err).To(BeAssignableToTypeOf(statusErr))
			statusErr = err.(*StatusError)
			Expect(statusErr.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(statusErr.Body).To(Equal("Incorrect API key provided"))
			Expect(isAuthError(err)).To(BeTrue())
		})
	})

	When("the API is overloaded", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusServiceUnavailable, "overloaded"))
		})

		It("returns a retryable error", func() {
			Expect(err).To(HaveOccurred())
			Expect(shouldRetry(err)).To(BeTrue())
		})
	})
})

var _ = Describe("NewOpenAI", func() {
	It("requires an api key", func() {
		_, err := NewOpenAI("", "", "")
		Expect(err).To(MatchError(ContainSubstring("api key is required")))
	})

	It("defaults the endpoint and model", func() {
		o, err := NewOpenAI("sk", "", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(o.baseURL).To(Equal(defaultOpenAIBaseURL))
		Expect(o.model).To(Equal(defaultOpenAIModel))
	})
})
