package csrf

import (
	"strings"
	"testing"
)

func TestVerifyTokenShouldAcceptDerivedToken(t *testing.T) {
	secret, err := GenerateSecret()
	if err != nil {
		t.Fatalf("GenerateSecret failed: %v", err)
	}
	token, err := DeriveToken(secret)
	if err != nil {
		t.Fatalf("DeriveToken failed: %v", err)
	}

	if !VerifyToken(secret, token) {
		t.Error("token derived from secret should verify")
	}
}

func TestVerifyTokenShouldFailClosedOnMissingParts(t *testing.T) {
	secret, _ := GenerateSecret()
	token, _ := DeriveToken(secret)

	if VerifyToken("", token) {
		t.Error("missing secret should reject")
	}
	if VerifyToken(secret, "") {
		t.Error("missing token should reject")
	}
	if VerifyToken("", "") {
		t.Error("missing both should reject")
	}
}

func TestVerifyTokenShouldRejectForeignSecret(t *testing.T) {
	secretA, _ := GenerateSecret()
	secretB, _ := GenerateSecret()
	token, _ := DeriveToken(secretA)

	if VerifyToken(secretB, token) {
		t.Error("token from another session's secret should reject")
	}
}

func TestVerifyTokenShouldRejectMalformedTokens(t *testing.T) {
	secret, _ := GenerateSecret()

	for _, token := range []string{"nodot", ".", "salt.", ".mac", "salt.deadbeef"} {
		if VerifyToken(secret, token) {
			t.Errorf("malformed token %q should reject", token)
		}
	}
}

func TestVerifyTokenShouldRejectTamperedMAC(t *testing.T) {
	secret, _ := GenerateSecret()
	token, _ := DeriveToken(secret)

	salt, _, _ := strings.Cut(token, ".")
	if VerifyToken(secret, salt+"."+strings.Repeat("0", 64)) {
		t.Error("tampered MAC should reject")
	}
}

func TestDeriveTokenShouldProduceDistinctValidTokens(t *testing.T) {
	secret, _ := GenerateSecret()

	a, _ := DeriveToken(secret)
	b, _ := DeriveToken(secret)
	if a == b {
		t.Error("each derivation should use a fresh salt")
	}
	if !VerifyToken(secret, a) || !VerifyToken(secret, b) {
		t.Error("all tokens derived from the live secret should verify")
	}
}

func TestRegeneratedSecretShouldInvalidateOldTokens(t *testing.T) {
	oldSecret, _ := GenerateSecret()
	oldToken, _ := DeriveToken(oldSecret)

	newSecret, _ := GenerateSecret()
	if VerifyToken(newSecret, oldToken) {
		t.Error("token from the previous secret should stop verifying")
	}
}
