package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iho/coinledger/internal/domain"
	"github.com/iho/coinledger/internal/infrastructure/auth"
)

func TestJWTManagerIssueAndVerify(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("super-secret", time.Minute)
	user := &domain.User{ID: "user-123", Role: domain.RoleOperator}

	token, err := manager.Issue(user)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	claims, err := manager.Verify(token)
	if err != nil {
		t.Fatalf("expected token to verify, got %v", err)
	}

	got := claims.User()
	if got.ID != user.ID || got.Role != user.Role {
		t.Fatalf("expected claims to match user, got %+v", got)
	}
}

func TestJWTManagerIssueRejectsBadUsers(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("secret", time.Minute)

	if _, err := manager.Issue(&domain.User{ID: "", Role: domain.RolePlayer}); err == nil {
		t.Fatal("expected error for empty user ID")
	}
	if _, err := manager.Issue(&domain.User{ID: "alice", Role: "root"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestJWTManagerVerifyErrors(t *testing.T) {
	t.Parallel()

	manager := auth.NewJWTManager("secret", time.Minute)

	sign := func(claims auth.Claims) string {
		t.Helper()
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
		if err != nil {
			t.Fatalf("failed to sign token: %v", err)
		}
		return token
	}

	expiredToken := sign(auth.Claims{
		Role: domain.RolePlayer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "expired",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Minute)),
		},
	})
	if _, err := manager.Verify(expiredToken); !errors.Is(err, domain.ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}

	otherManager := auth.NewJWTManager("other-secret", time.Minute)
	if _, err := otherManager.Verify(expiredToken); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected invalid token error, got %v", err)
	}

	noExpiry := sign(auth.Claims{
		Role:             domain.RolePlayer,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "alice"},
	})
	if _, err := manager.Verify(noExpiry); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected token without expiry to be rejected, got %v", err)
	}

	badRole := sign(auth.Claims{
		Role: "root",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	if _, err := manager.Verify(badRole); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected unknown role to be rejected, got %v", err)
	}

	if _, err := manager.Verify("not-a-token"); err == nil {
		t.Fatalf("expected failure for malformed token")
	}
}
