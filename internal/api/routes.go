package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/kyc-voice/internal/auth"
	"github.com/satriahrh/kyc-voice/internal/websocket"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, bridge *websocket.Bridge, authenticator *auth.Authenticator, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, HealthResponse{
			Status:          "ok",
			Service:         "kyc-voice",
			DeviceConnected: bridge.Connected(),
		})
	})

	v1 := e.Group("/api/v1")
	v1.POST("/device/auth", func(c echo.Context) error {
		return deviceAuth(c, authenticator, logger)
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(c, bridge, authenticator, logger)
	})
}

func deviceAuth(c echo.Context, authenticator *auth.Authenticator, logger *zap.Logger) error {
	var req DeviceAuthRequest
	if err := c.Bind(&req); err != nil {
		logger.Warn("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.DeviceID == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Device ID and secret key are required",
		})
	}

	token, expiresAt, err := authenticator.AuthenticateDevice(req.DeviceID, req.SecretKey)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			logger.Warn("Device authentication failed", zap.String("device_id", req.DeviceID))
			return c.JSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "authentication_failed",
				Message: "Invalid device credentials",
			})
		}
		logger.Error("Failed to generate device token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Device authenticated", zap.String("device_id", req.DeviceID))
	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		DeviceID:  req.DeviceID,
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(c echo.Context, bridge *websocket.Bridge, authenticator *auth.Authenticator, logger *zap.Logger) error {
	token, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	claims, err := authenticator.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		status, code := http.StatusUnauthorized, "invalid_token"
		if errors.Is(err, auth.ErrInvalidRole) {
			status, code = http.StatusForbidden, "invalid_role"
		}
		return c.JSON(status, ErrorResponse{
			Error:   code,
			Message: "Invalid or expired JWT token",
		})
	}

	if bridge.Connected() {
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "device_busy",
			Message: websocket.ErrDeviceBusy.Error(),
		})
	}

	logger.Info("WebSocket connection authenticated", zap.String("device_id", claims.DeviceID))
	return bridge.HandleWebSocket(c, claims.DeviceID)
}
