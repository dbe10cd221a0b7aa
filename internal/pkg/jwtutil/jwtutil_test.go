package jwtutil

import (
	"errors"
	"testing"
	"time"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken("s3cret", "ops", RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	claims, err := ParseToken("s3cret", token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "ops" || claims.Role != RoleAdmin {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseRejects(t *testing.T) {
	valid, err := GenerateToken("s3cret", "ops", RoleAdmin, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	expired, err := GenerateToken("s3cret", "ops", RoleAdmin, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{name: "wrong secret", secret: "other", token: valid},
		{name: "expired", secret: "s3cret", token: expired},
		{name: "garbage", secret: "s3cret", token: "not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.secret, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("ParseToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	if _, err := GenerateToken("", "ops", RoleAdmin, time.Minute); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
