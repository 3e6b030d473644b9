package discord

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// textExtractor returns machine-readable text for an attachment URL
type textExtractor func(attachmentURL string) (string, error)

// maxExtractLen bounds how much extracted text rides along with a message
const maxExtractLen = 1 << 16

// extractorClient talks to an external text-extraction (OCR) service:
// GET <endpoint>?url=<attachment> answers with the recognized text as the
// response body. Configured via discord.ocr.url; without it attachments
// carry no extracted text and ocr_search triggers simply never match.
func extractorClient(endpoint string) textExtractor {
	client := &http.Client{Timeout: 10 * time.Second}
	return func(attachmentURL string) (string, error) {
		resp, err := client.Get(endpoint + "?url=" + url.QueryEscape(attachmentURL))
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("extractor returned %s", resp.Status)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxExtractLen))
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(body)), nil
	}
}
