package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
)

type responseEnvelope struct {
	Status      string      `json:"response_status"`
	Description string      `json:"response_description"`
	Data        interface{} `json:"response_data"`
}

const (
	envelopeKey        = "response_status"
	defaultSuccessDesc = "Request processed"
	defaultErrorDesc   = "An error occurred"
)

// envelopeWriter buffers the handler's output so the middleware can rewrite
// it after the chain finishes. Headers still go to the real writer.
type envelopeWriter struct {
	gin.ResponseWriter
	body   bytes.Buffer
	status int
}

func (w *envelopeWriter) WriteHeader(code int) {
	w.status = code
}

func (w *envelopeWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *envelopeWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func (w *envelopeWriter) Status() int {
	return w.status
}

// WriteHeaderNow must not reach the wire while buffering; the status is
// already recorded and flushEnvelope writes it once the chain finishes.
// Without this, an abort would flush the embedded writer's default 200.
func (w *envelopeWriter) WriteHeaderNow() {}

// Envelope normalizes every response into
// {response_status, response_description, response_data}. Handler bodies
// carrying message/data keys are remapped; bodies already in envelope form
// pass through unchanged, as do redirects. A panic downstream is turned into
// a 500 error envelope and then re-raised for the recovery middleware to log.
func Envelope() gin.HandlerFunc {
	return func(c *gin.Context) {
		buffered := &envelopeWriter{ResponseWriter: c.Writer, status: http.StatusOK}
		c.Writer = buffered

		defer func() {
			rec := recover()
			c.Writer = buffered.ResponseWriter
			if rec != nil {
				// Whatever the handler managed to buffer is unreliable now.
				buffered.status = http.StatusInternalServerError
				buffered.body.Reset()
			}

			flushEnvelope(c.Writer, buffered.status, buffered.body.Bytes())

			if rec != nil {
				panic(rec)
			}
		}()

		c.Next()
	}
}

func flushEnvelope(w gin.ResponseWriter, status int, body []byte) {
	// Redirects pass through untouched.
	if status >= 300 && status < 400 {
		writeRaw(w, status, body)
		return
	}

	var content map[string]interface{}
	parseErr := json.Unmarshal(body, &content)

	if parseErr == nil && content != nil {
		// Already enveloped: do not double-wrap.
		if _, ok := content[envelopeKey]; ok {
			writeRaw(w, status, body)
			return
		}
		writeEnvelope(w, status, envelopeFromContent(status, content))
		return
	}

	// Malformed or non-JSON body. Successful responses stay untouched;
	// errors degrade to a best-effort envelope.
	if status <= 399 {
		writeRaw(w, status, body)
		return
	}
	data := map[string]interface{}{}
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 {
		data["raw"] = string(trimmed)
	}
	writeEnvelope(w, status, responseEnvelope{
		Status:      "error",
		Description: http.StatusText(status),
		Data:        data,
	})
}

func envelopeFromContent(status int, content map[string]interface{}) responseEnvelope {
	description, haveDesc := firstString(content, "response_description", "message", "detail")
	data, haveData := content["response_data"]
	if !haveData {
		data, haveData = content["data"]
	}

	if status <= 399 {
		if !haveDesc {
			description = defaultSuccessDesc
		}
		if !haveData {
			data = map[string]interface{}{}
		}
		return responseEnvelope{Status: "success", Description: description, Data: data}
	}

	if !haveDesc {
		description = defaultErrorDesc
	}
	if !haveData {
		// No structured payload: ship the whole body for debugging.
		data = content
	}
	return responseEnvelope{Status: "error", Description: description, Data: data}
}

func firstString(content map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		if raw, ok := content[key]; ok {
			if s, ok := raw.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func writeEnvelope(w gin.ResponseWriter, status int, env responseEnvelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Del("Content-Length")
	w.WriteHeader(status)
	// Encoding a map/struct of JSON-decoded values cannot fail; ignore the
	// error rather than failing the response pipeline this late.
	_ = json.NewEncoder(w).Encode(env)
}

func writeRaw(w gin.ResponseWriter, status int, body []byte) {
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}
