package user

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashPassword("segredo")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$") {
		t.Errorf("hash = %q", hash)
	}
	if err := ValidateHash(hash); err != nil {
		t.Errorf("ValidateHash: %v", err)
	}
	if !VerifyPassword("segredo", hash) {
		t.Error("correct password rejected")
	}
	if VerifyPassword("Segredo", hash) {
		t.Error("wrong password accepted")
	}

	other, _ := HashPassword("segredo")
	if other == hash {
		t.Error("two hashes share a salt")
	}

	if _, err := HashPassword(""); err == nil {
		t.Error("empty password accepted")
	}
}

func TestValidateHashRejects(t *testing.T) {
	for _, bad := range []string{
		"",
		"plaintext",
		"$2a$10$abcdefghijklmnopqrstuu",
		"$argon2id$v=19$m=65536,t=3,p=4$!!!$abc",
		"$argon2id$v=16$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		"$argon2i$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
	} {
		if err := ValidateHash(bad); err == nil {
			t.Errorf("ValidateHash(%q) accepted", bad)
		}
	}
}

func TestRegistry(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(map[string]string{
		"alice":    hash,
		"Bob":      hash,       // bad username
		"carol":    "not-hash", // bad hash
		"dave_2nd": hash,
	})

	if got := r.Names(); len(got) != 2 || got[0] != "alice" || got[1] != "dave_2nd" {
		t.Errorf("Names = %v", got)
	}
	if !r.AuthRequired() {
		t.Error("AuthRequired = false with accounts")
	}

	if u, ok := r.Authenticate("alice", "pw"); !ok || u.Name != "alice" {
		t.Errorf("Authenticate(alice) = %v, %v", u, ok)
	}
	if _, ok := r.Authenticate("alice", "nope"); ok {
		t.Error("bad password accepted")
	}
	if _, ok := r.Authenticate("mallory", "pw"); ok {
		t.Error("unknown user accepted")
	}

	r.Replace(nil)
	if r.AuthRequired() || r.Get("alice") != nil {
		t.Error("Replace(nil) kept accounts")
	}
}

func TestValidateUsername(t *testing.T) {
	for name, ok := range map[string]bool{
		"alice":                 true,
		"a":                     true,
		"user_01":               true,
		"":                      false,
		"1alice":                false,
		"Alice":                 false,
		"al ice":                false,
		strings.Repeat("a", 33): false,
	} {
		if err := ValidateUsername(name); (err == nil) != ok {
			t.Errorf("ValidateUsername(%q) = %v, want ok=%v", name, err, ok)
		}
	}
}
