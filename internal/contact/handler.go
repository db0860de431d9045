package contact

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Response is the body of every reply from the contact endpoint.
type Response struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// MaxBodyBytes caps the request body; anything larger is an invalid body.
const MaxBodyBytes = 64 << 10

// IPHasher hides client addresses before they are logged or stored.
type IPHasher interface {
	HashIP(ip string) string
}

type Handler struct {
	service *Service
	hasher  IPHasher
	logger  *zap.Logger
}

func NewHandler(service *Service, hasher IPHasher, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		hasher:  hasher,
		logger:  logger.Named("contact.http"),
	}
}

// Submit handles any verb so that non-POST requests get the JSON 405 body
// instead of a router-level 404.
func (h *Handler) Submit(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.Header("Allow", http.MethodPost)
		c.JSON(http.StatusMethodNotAllowed, Response{Message: MsgMethodNotAllowed})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes)

	var payload Payload
	if err := c.ShouldBind(&payload); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("undecodable contact payload",
			zap.String("request_id", c.GetString(RequestIDKey)),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, Response{Message: MsgInvalidBody})
		return
	}

	src := Source{
		RequestID: c.GetString(RequestIDKey),
		ClientIP:  h.hasher.HashIP(c.ClientIP()),
		UserAgent: c.Request.UserAgent(),
		Referrer:  c.Request.Referer(),
	}

	_, err := h.service.Submit(c.Request.Context(), payload, src)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, Response{Message: MsgReceived})
	case errors.Is(err, ErrMissingFields):
		c.JSON(http.StatusBadRequest, Response{Message: MsgMissingFields})
	case errors.Is(err, ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, Response{Message: MsgInvalidEmail})
	case errors.Is(err, ErrDeliveryFailed):
		c.JSON(http.StatusBadGateway, Response{Message: MsgDeliveryFailed, Error: err.Error()})
	default:
		h.logger.Error("contact submission failed",
			zap.String("request_id", src.RequestID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, Response{Message: MsgInternalError, Error: err.Error()})
	}
}

// RequestIDKey is the gin context key the request-id middleware sets.
const RequestIDKey = "RequestID"
