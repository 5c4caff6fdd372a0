package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/wanderpeak/tours-api/pkg/auth"
)

const testSecret = "test-secret"

func TestNewAndParse(t *testing.T) {
	token, err := auth.New(42, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	claims, err := auth.Parse(token, testSecret)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Sub != 42 {
		t.Errorf("expected sub 42, got %d", claims.Sub)
	}
	if claims.IssuedAt == nil {
		t.Error("expected iat to be set")
	}
}

func TestParseExpired(t *testing.T) {
	token, err := auth.New(1, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = auth.Parse(token, testSecret)
	if !errors.Is(err, auth.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseWrongSecret(t *testing.T) {
	token, err := auth.New(1, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = auth.Parse(token, "other-secret")
	if !errors.Is(err, auth.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseGarbage(t *testing.T) {
	_, err := auth.Parse("not.a.token", testSecret)
	if !errors.Is(err, auth.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}
