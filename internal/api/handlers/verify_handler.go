package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"gatecheck/internal/utils"
	"gatecheck/internal/utils/logger"
	"gatecheck/internal/verify"
)

// VerifyService is the slice of the orchestrator the handler needs.
type VerifyService interface {
	Verify(ctx context.Context, req *verify.Request) (*verify.Result, error)
}

type VerifyHandler struct {
	verifier VerifyService
	version  string
	log      *logger.Logger
}

func NewVerifyHandler(verifier VerifyService, version string) *VerifyHandler {
	return &VerifyHandler{
		verifier: verifier,
		version:  version,
		log:      logger.New("VerifyHandler"),
	}
}

// VerifyRequest is the wire form of one verification query from the edge.
// Cookie names in sessions carry a ".<unixMillis>" suffix; requestIp may
// include a port suffix.
type VerifyRequest struct {
	Sessions           map[string]string `json:"sessions"`
	Headers            map[string]string `json:"headers"`
	Query              map[string]string `json:"query"`
	OriginalRequestURL string            `json:"originalRequestURL" validate:"required,url"`
	Scheme             string            `json:"scheme" validate:"required,http_scheme"`
	Host               string            `json:"host" validate:"required"`
	Path               string            `json:"path" validate:"required"`
	Method             string            `json:"method" validate:"required"`
	TLS                bool              `json:"tls"`
	RequestIP          string            `json:"requestIp"`
	BadgerVersion      string            `json:"badgerVersion"`
}

// VerifyResponse always travels with HTTP 200 for a well-formed request;
// "not authorized" is valid=false, not an HTTP status. The caller is the
// proxy's data plane, not an end user.
type VerifyResponse struct {
	Valid                bool   `json:"valid"`
	HeaderAuthChallenged bool   `json:"headerAuthChallenged,omitempty"`
	RedirectURL          string `json:"redirectUrl,omitempty"`
	Username             string `json:"username,omitempty"`
	Email                string `json:"email,omitempty"`
	Name                 string `json:"name,omitempty"`
	Role                 string `json:"role,omitempty"`
	PangolinVersion      string `json:"pangolinVersion"`
}

// Verify handles POST /api/v1/gateway/verify-session.
func (h *VerifyHandler) Verify(c echo.Context) error {
	var req VerifyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if err := c.Validate(&req); err != nil {
		// ValidationErrors map to a 400 field map in the error handler.
		return err
	}

	clientIP := req.RequestIP
	if clientIP == "" {
		clientIP = utils.GetIPAddress(c.Request())
	}

	result, err := h.verifier.Verify(c.Request().Context(), &verify.Request{
		Sessions:           req.Sessions,
		Headers:            req.Headers,
		Query:              req.Query,
		OriginalRequestURL: req.OriginalRequestURL,
		Scheme:             req.Scheme,
		Host:               req.Host,
		Path:               req.Path,
		Method:             req.Method,
		TLS:                req.TLS,
		RequestIP:          clientIP,
		EdgeVersion:        req.BadgerVersion,
	})
	if err != nil {
		return h.log.Error("verification failed", err)
	}

	resp := VerifyResponse{
		Valid:                result.Valid,
		HeaderAuthChallenged: result.HeaderAuthChallenged,
		RedirectURL:          result.RedirectURL,
		PangolinVersion:      h.version,
	}
	if result.User != nil {
		resp.Username = result.User.Username
		resp.Email = result.User.Email
		resp.Name = result.User.Name
		resp.Role = result.User.Role
	}

	return c.JSON(http.StatusOK, resp)
}
