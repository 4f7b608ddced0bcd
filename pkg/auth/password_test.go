package auth

import (
	"testing"
)

func TestHashPassword(t *testing.T) {
	password := "senha-forte-123"

	hashed, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	if hashed == "" || hashed == password {
		t.Error("Hash should be non-empty and different from the password")
	}

	// bcrypt salts, so hashing twice gives different hashes.
	hashed2, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password second time: %v", err)
	}
	if hashed == hashed2 {
		t.Error("Different hashes should be generated for the same password")
	}
}

func TestCheckPassword(t *testing.T) {
	password := "senha-forte-123"

	hashed, err := HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	if !CheckPassword(hashed, password) {
		t.Error("CheckPassword should accept the correct password")
	}
	if CheckPassword(hashed, "senha-errada") {
		t.Error("CheckPassword should reject a wrong password")
	}
	if CheckPassword(hashed, "") {
		t.Error("CheckPassword should reject an empty password")
	}
	if CheckPassword("", password) {
		t.Error("CheckPassword should reject an empty hash")
	}
}
