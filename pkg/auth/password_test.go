package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "s3cret" {
		t.Fatalf("hash must not equal the password")
	}
	if !CheckPassword("s3cret", hash) {
		t.Fatalf("correct password should verify")
	}
	if CheckPassword("wrong", hash) {
		t.Fatalf("wrong password should not verify")
	}
}

func TestCheckPasswordRejectsGarbageHash(t *testing.T) {
	if CheckPassword("anything", "not-a-bcrypt-hash") {
		t.Fatalf("garbage hash should not verify")
	}
}
