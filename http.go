package ai

import (
	"net/http"
)

// ResponseInit customizes the HTTP response written by the stream adapters.
// Headers override the defaults; Status defaults to 200.
type ResponseInit struct {
	Status  int
	Headers http.Header
}

func writeStreamHeaders(w http.ResponseWriter, defaults map[string]string, init *ResponseInit) {
	h := w.Header()
	for k, v := range defaults {
		h.Set(k, v)
	}
	status := http.StatusOK
	if init != nil {
		for k, vs := range init.Headers {
			h.Del(k)
			for _, v := range vs {
				h.Add(k, v)
			}
		}
		if init.Status != 0 {
			status = init.Status
		}
	}
	w.WriteHeader(status)
}

var textStreamHeaders = map[string]string{
	"Content-Type": "text/plain; charset=utf-8",
}

var uiMessageStreamHeaders = map[string]string{
	"Content-Type":        "text/event-stream",
	"Cache-Control":       "no-cache",
	"X-Ui-Message-Stream": "v1",
}

// PipeTextStreamToResponse writes the text deltas to w as they arrive.
func (r *StreamTextResult) PipeTextStreamToResponse(w http.ResponseWriter, init *ResponseInit) error {
	writeStreamHeaders(w, textStreamHeaders, init)
	flusher, _ := w.(http.Flusher)

	ts := r.TextStream()
	for ts.Next() {
		if _, err := w.Write([]byte(ts.Delta())); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return ts.Err()
}

// ToTextStreamResponse returns a handler that pipes the text stream.
func (r *StreamTextResult) ToTextStreamResponse(init *ResponseInit) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = r.PipeTextStreamToResponse(w, init)
	})
}

// PipeUIMessageStreamToResponse writes the UI message stream to w as
// server-sent events.
func (r *StreamTextResult) PipeUIMessageStreamToResponse(w http.ResponseWriter, init *ResponseInit, opts UIMessageStreamOptions) error {
	writeStreamHeaders(w, uiMessageStreamHeaders, init)
	_, err := r.UIMessageStream(opts).WriteTo(w)
	return err
}

// ToUIMessageStreamResponse returns a handler that pipes the UI message
// stream.
func (r *StreamTextResult) ToUIMessageStreamResponse(init *ResponseInit, opts UIMessageStreamOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = r.PipeUIMessageStreamToResponse(w, init, opts)
	})
}
