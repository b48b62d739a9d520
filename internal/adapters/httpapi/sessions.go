package httpapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bnema/grader/internal/domain"
)

type resourceUserRequest struct {
	ID             string `json:"id"`
	UserID         string `json:"userId"`
	ToolName       string `json:"toolName"`
	ResourceLinkID string `json:"resourceLinkId"`
	ContextID      string `json:"contextId"`
}

type sessionRequest struct {
	ToolKey        string              `json:"toolKey"`
	ResourceUser   resourceUserRequest `json:"resourceUser"`
	Privileged     bool                `json:"privileged"`
	OutcomeAllowed bool                `json:"outcomeAllowed"`
	CustomArgs     []string            `json:"customArgs"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	LaunchID  string `json:"launchId"`
}

func (s *Server) handleOpenSession(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err)
	}
	if req.ToolKey == "" || req.ResourceUser.ID == "" || req.ResourceUser.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "must supply toolKey, resourceUser.id and resourceUser.userId")
	}

	launch, err := s.sessions.Open(c.Request().Context(), domain.LaunchContext{
		ToolKeyID: domain.ToolKeyID(req.ToolKey),
		ResourceUser: domain.ResourceUser{
			ID:             domain.ResourceUserID(req.ResourceUser.ID),
			UserID:         req.ResourceUser.UserID,
			ToolName:       req.ResourceUser.ToolName,
			ToolKeyID:      domain.ToolKeyID(req.ToolKey),
			ResourceLinkID: req.ResourceUser.ResourceLinkID,
			ContextID:      req.ResourceUser.ContextID,
		},
		Privileged:     req.Privileged,
		OutcomeAllowed: req.OutcomeAllowed,
		CustomArgs:     req.CustomArgs,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    string(launch.SessionID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusCreated, sessionResponse{SessionID: string(launch.SessionID), LaunchID: launch.LaunchID})
}
