package services

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// CallbackFallback is returned to the chat whenever a callback endpoint
// fails for any reason.
const CallbackFallback = "❌ Error processing your request."

// CallbackPayload is the body posted to a trigger's callback endpoint.
type CallbackPayload struct {
	Keyword string `json:"keyword"`
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
}

// CallbackInvoker posts matched-trigger metadata to external endpoints and
// normalizes whatever comes back into reply text. Failures never propagate.
type CallbackInvoker struct {
	client *http.Client
}

// NewCallbackInvoker creates an invoker with the default 10s timeout
func NewCallbackInvoker() *CallbackInvoker {
	return &CallbackInvoker{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Invoke calls the endpoint and returns reply text. On timeout, network
// error, non-2xx or an unreadable body it returns CallbackFallback.
func (ci *CallbackInvoker) Invoke(callbackURL string, payload CallbackPayload) string {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("❌ Failed to marshal callback payload: %v", err)
		return CallbackFallback
	}

	resp, err := ci.client.Post(callbackURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("❌ Callback %s failed: %v", callbackURL, err)
		return CallbackFallback
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("❌ Callback %s returned status %d", callbackURL, resp.StatusCode)
		return CallbackFallback
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		log.Printf("❌ Callback %s body unreadable: %v", callbackURL, err)
		return CallbackFallback
	}

	return normalizeCallbackResponse(data, resp.Header.Get("Content-Type"))
}

// normalizeCallbackResponse turns the response body into plain reply text.
// Textual bodies pass through as-is; JSON bodies are reduced to a string
// when they are one, otherwise reserialized.
func normalizeCallbackResponse(data []byte, contentType string) string {
	text := string(data)

	if strings.Contains(contentType, "application/json") {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			return s
		}
		var v interface{}
		if err := json.Unmarshal(data, &v); err == nil {
			out, err := json.Marshal(v)
			if err == nil {
				return string(out)
			}
		}
	}

	return text
}
