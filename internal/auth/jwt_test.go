package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123")

func TestAuthenticator_RoundTrip(t *testing.T) {
	a, err := NewAuthenticator(testSecret, "kyc-device-1", "s3cret")
	if err != nil {
		t.Fatalf("NewAuthenticator failed: %v", err)
	}

	token, expires, err := a.GenerateDeviceToken("kyc-device-1")
	if err != nil {
		t.Fatalf("GenerateDeviceToken failed: %v", err)
	}
	if time.Until(expires) < 23*time.Hour {
		t.Errorf("Expected a 24h token, expires at %s", expires)
	}

	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.DeviceID != "kyc-device-1" || claims.Role != RoleDevice {
		t.Errorf("Unexpected claims %+v", claims)
	}
}

func TestAuthenticator_AuthenticateDevice(t *testing.T) {
	a, _ := NewAuthenticator(testSecret, "kyc-device-1", "s3cret")

	if _, _, err := a.AuthenticateDevice("kyc-device-1", "s3cret"); err != nil {
		t.Errorf("Expected valid credentials to pass: %v", err)
	}
	if _, _, err := a.AuthenticateDevice("kyc-device-1", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := a.AuthenticateDevice("other", "s3cret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Expected ErrInvalidCredentials for unknown device, got %v", err)
	}

	noExchange, _ := NewAuthenticator(testSecret, "kyc-device-1", "")
	if _, _, err := noExchange.AuthenticateDevice("kyc-device-1", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Credential exchange should be disabled without a secret, got %v", err)
	}
}

func TestAuthenticator_ValidateToken_Rejects(t *testing.T) {
	a, _ := NewAuthenticator(testSecret, "kyc-device-1", "")

	t.Run("wrong secret", func(t *testing.T) {
		other, _ := NewAuthenticator([]byte("another-secret-value"), "kyc-device-1", "")
		token, _, _ := other.GenerateDeviceToken("kyc-device-1")
		if _, err := a.ValidateToken(token); err == nil {
			t.Error("Expected signature error")
		}
	})

	t.Run("expired", func(t *testing.T) {
		past, _ := NewAuthenticator(testSecret, "kyc-device-1", "")
		past.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
		token, _, _ := past.GenerateDeviceToken("kyc-device-1")
		if _, err := a.ValidateToken(token); !errors.Is(err, jwt.ErrTokenExpired) {
			t.Errorf("Expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("wrong role", func(t *testing.T) {
		claims := &JWTClaims{DeviceID: "kyc-device-1", Role: "user"}
		token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		if _, err := a.ValidateToken(token); !errors.Is(err, ErrInvalidRole) {
			t.Errorf("Expected ErrInvalidRole, got %v", err)
		}
	})

	t.Run("unknown device", func(t *testing.T) {
		token, _, _ := a.GenerateDeviceToken("other-device")
		if _, err := a.ValidateToken(token); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestNewAuthenticator_RequiresSecret(t *testing.T) {
	if _, err := NewAuthenticator(nil, "d", ""); err == nil {
		t.Error("Expected error for empty secret")
	}
}
