package stream

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tool result recovery", func() {
	Context("with a marker-prefixed object", func() {
		It("parses a clean ToolMessage payload", func() {
			content := `ToolMessage: {"action":"search","status":"success","data":{"hits":3}}`

			res, err := recoverToolResult(content)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Action).To(Equal("search"))
			Expect(res.Status).To(Equal("success"))
			Expect(res.success()).To(BeTrue())
			Expect(res.Data).To(HaveKeyWithValue("hits", float64(3)))
		})

		It("repairs an embedded literal newline before the closing brace", func() {
			content := "ToolMessage: {\"action\":\"search\",\"status\":\"success\",\"data\":{\"image_urls\":[\"http://x/a.png\"]}\n}"

			res, err := recoverToolResult(content)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.success()).To(BeTrue())
			Expect(res.imageURLs()).To(Equal([]string{"http://x/a.png"}))
		})

		It("repairs escaped newlines and trailing commas", func() {
			content := `ToolMessage: {"action":"gen",\n"status":"success",\n"data":{"k":"v",},}`

			res, err := recoverToolResult(content)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Action).To(Equal("gen"))
			Expect(res.Data).To(HaveKeyWithValue("k", "v"))
		})
	})

	Context("without the marker", func() {
		It("falls back to first-brace/last-brace extraction", func() {
			content := `tool finished with {"action":"fetch","status":"error","data":{}} trailing text`

			res, err := recoverToolResult(content)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Action).To(Equal("fetch"))
			Expect(res.Status).To(Equal("error"))
			Expect(res.success()).To(BeFalse())
		})
	})

	Context("with unrecoverable content", func() {
		It("reports content with no object", func() {
			_, err := recoverToolResult("no json here")
			Expect(err).To(MatchError(errNoEmbeddedJSON))
		})

		It("reports content that stays broken after repair", func() {
			_, err := recoverToolResult(`ToolMessage: {"action": nope}`)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("success resolution", func() {
		It("prefers an explicit success flag over the status", func() {
			content := `ToolMessage: {"action":"a","status":"success","success":false,"data":{}}`

			res, err := recoverToolResult(content)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.success()).To(BeFalse())
		})
	})

	Describe("imageURLs", func() {
		It("returns nil for an empty or absent array", func() {
			res, err := recoverToolResult(`ToolMessage: {"action":"a","status":"success","data":{"image_urls":[]}}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.imageURLs()).To(BeNil())

			res, err = recoverToolResult(`ToolMessage: {"action":"a","status":"success","data":{}}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.imageURLs()).To(BeNil())
		})

		It("skips non-string entries", func() {
			res, err := recoverToolResult(`ToolMessage: {"action":"a","status":"success","data":{"image_urls":["http://x/a.png",42,""]}}`)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.imageURLs()).To(Equal([]string{"http://x/a.png"}))
		})
	})
})
