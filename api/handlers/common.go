package handlers

import (
	"encoding/json"
	"mime"
	"net/http"

	"github.com/BaSui01/agentflow/api"
	"github.com/BaSui01/agentflow/llm"
	"github.com/BaSui01/agentflow/router"
	"go.uber.org/zap"
)

// =============================================================================
// 📦 响应辅助函数
// =============================================================================

// WriteJSON writes data as a JSON body with the given HTTP status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already flushed; nothing left to do but drop it.
		return
	}
}

// WriteError writes err as an OpenAI error envelope (spec §7:
// {error:{message, type, code}}) with the mapped HTTP status.
func WriteError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status := router.HTTPStatus(err)
	envType := router.EnvelopeType(err)
	code := router.Code(err)
	message := router.Message(err)

	if logger != nil {
		logger.Error("request failed",
			zap.String("code", code),
			zap.String("type", envType),
			zap.Int("status", status),
			zap.String("message", message),
		)
	}

	WriteJSON(w, status, api.ErrorEnvelope{
		Error: api.ErrorDetail{Message: message, Type: envType, Code: code},
	})
}

// =============================================================================
// 🛡️ 请求验证辅助函数
// =============================================================================

// DecodeJSONBody decodes r's JSON body into dst, writing an OpenAI
// validation_error envelope and returning a non-nil error on failure.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil {
		err := &llm.Error{Code: llm.ErrValidation, Message: "request body is empty", HTTPStatus: http.StatusBadRequest}
		WriteError(w, err, logger)
		return err
	}

	// Limit request body to 1 MB to prevent abuse.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	decoder := json.NewDecoder(r.Body)
	if decErr := decoder.Decode(dst); decErr != nil {
		err := &llm.Error{Code: llm.ErrValidation, Message: "invalid JSON body", HTTPStatus: http.StatusBadRequest, Cause: decErr}
		WriteError(w, err, logger)
		return err
	}
	return nil
}

// ValidateContentType rejects any request whose Content-Type is not
// application/json (parsed leniently via mime.ParseMediaType so parameters
// like charset and case variants are accepted).
func ValidateContentType(w http.ResponseWriter, r *http.Request, logger *zap.Logger) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		apiErr := &llm.Error{Code: llm.ErrValidation, Message: "Content-Type must be application/json", HTTPStatus: http.StatusBadRequest}
		WriteError(w, apiErr, logger)
		return false
	}
	return true
}

// =============================================================================
// 📊 响应包装器（用于捕获状态码）
// =============================================================================

// ResponseWriter wraps http.ResponseWriter to capture the status code and
// whether a write has occurred, for use by request-logging middleware.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter wraps w.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
