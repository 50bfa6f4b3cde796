package auth

import (
	"errors"
	"strings"
	"testing"

	"thinkflow/internal/domain"
)

// Cheap parameters keep the suite fast.
var testParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func TestHashPassword_NonDeterministic(t *testing.T) {
	p := "correct horse battery staple"
	h1, err := HashPasswordWith(p, testParams)
	if err != nil {
		t.Fatalf("HashPasswordWith: %v", err)
	}
	h2, err := HashPasswordWith(p, testParams)
	if err != nil {
		t.Fatalf("HashPasswordWith: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("expected different hashes for same password")
	}
	if !strings.HasPrefix(h1, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %s", h1)
	}
}

func TestVerifyPassword(t *testing.T) {
	p := "correct horse battery staple"
	h, err := HashPasswordWith(p, testParams)
	if err != nil {
		t.Fatalf("HashPasswordWith: %v", err)
	}

	ok, err := VerifyPassword(h, p)
	if err != nil || !ok {
		t.Fatalf("expected password to verify, ok=%v err=%v", ok, err)
	}

	ok, err = VerifyPassword(h, "wrong password")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Fatalf("expected wrong password to fail verification")
	}
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for _, h := range []string{"", "plain", "$argon2i$v=19$m=1,t=1,p=1$c2FsdA$a2V5", "$argon2id$v=18$m=1,t=1,p=1$c2FsdA$a2V5", "$argon2id$v=19$m=x$c2FsdA$a2V5"} {
		if _, err := VerifyPassword(h, "pw"); !errors.Is(err, errBadHash) {
			t.Fatalf("hash %q: expected errBadHash, got %v", h, err)
		}
	}
}

func TestCheckPasswordPolicy(t *testing.T) {
	if err := CheckPasswordPolicy("short"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := CheckPasswordPolicy(strings.Repeat("a", MaxPasswordLen+1)); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := CheckPasswordPolicy("long enough"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
