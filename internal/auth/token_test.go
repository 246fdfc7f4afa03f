package auth

import (
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:       "st-1",
		Name:      "Priya",
		Kind:      "staff",
		StaffRole: "architect",
		JTI:       "jti-1",
		Exp:       time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Sub != "st-1" || claims.Kind != "staff" || claims.StaffRole != "architect" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "co-1",
		Name: "Hartwell Construction",
		Kind: "company",
		JTI:  "jti-1",
		Exp:  time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	_, err = ParseToken(secret, issued)
	if err == nil {
		t.Fatal("expected ParseToken() to fail for expired token")
	}
}

func TestParseTokenRejectsTampering(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, Claims{
		Sub:  "cl-1",
		Name: "Meadow Homes",
		Kind: "client",
		JTI:  "jti-1",
		Exp:  time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken([]byte("other-secret"), issued); err == nil {
		t.Fatal("expected ParseToken() to fail for wrong secret")
	}
	if _, err := ParseToken(secret, issued+"x"); err == nil {
		t.Fatal("expected ParseToken() to fail for tampered signature")
	}
}
