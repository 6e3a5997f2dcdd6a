package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleDevice = "device"

	deviceTokenTTL = 24 * time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid device credentials")
	ErrInvalidRole        = errors.New("token role is not allowed")
)

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	DeviceID string `json:"device_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and checks tokens for the single audio device
type Authenticator struct {
	secret       []byte
	deviceID     string
	deviceSecret string
	now          func() time.Time
}

// NewAuthenticator creates an authenticator. An empty deviceSecret disables
// credential exchange; tokens can still be issued directly.
func NewAuthenticator(secret []byte, deviceID, deviceSecret string) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}
	return &Authenticator{
		secret:       secret,
		deviceID:     deviceID,
		deviceSecret: deviceSecret,
		now:          time.Now,
	}, nil
}

// GenerateDeviceToken generates a JWT token for device authentication
func (a *Authenticator) GenerateDeviceToken(deviceID string) (string, time.Time, error) {
	issued := a.now()
	expires := issued.Add(deviceTokenTTL)
	claims := &JWTClaims{
		DeviceID: deviceID,
		Role:     RoleDevice,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(issued),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expires, nil
}

// AuthenticateDevice exchanges the configured device credentials for a token
func (a *Authenticator) AuthenticateDevice(deviceID, secret string) (string, time.Time, error) {
	if a.deviceSecret == "" ||
		subtle.ConstantTimeCompare([]byte(deviceID), []byte(a.deviceID)) != 1 ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(a.deviceSecret)) != 1 {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.GenerateDeviceToken(deviceID)
}

// ValidateToken validates a device JWT and returns its claims
func (a *Authenticator) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Role != RoleDevice {
		return nil, ErrInvalidRole
	}
	if claims.DeviceID != a.deviceID {
		return nil, fmt.Errorf("unknown device %q: %w", claims.DeviceID, ErrInvalidCredentials)
	}
	return claims, nil
}
