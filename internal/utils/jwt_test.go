package utils

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := CreateToken("secret", "user-1", "desk@studio.test", time.Minute)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	claims, err := ParseToken("secret", token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("user_id = %s, want user-1", claims.UserID)
	}
	if claims.Email != "desk@studio.test" {
		t.Errorf("email = %s, want desk@studio.test", claims.Email)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := CreateToken("secret", "user-1", "desk@studio.test", time.Minute)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := ParseToken("other-secret", token); err == nil {
		t.Error("токен с чужой подписью прошел проверку")
	}
}

func TestParseTokenExpired(t *testing.T) {
	token, err := CreateToken("secret", "user-1", "desk@studio.test", -time.Minute)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if _, err := ParseToken("secret", token); err == nil {
		t.Error("просроченный токен прошел проверку")
	}
}

func TestParseTokenGarbage(t *testing.T) {
	if _, err := ParseToken("secret", "not-a-token"); err == nil {
		t.Error("мусорная строка прошла проверку")
	}
}
