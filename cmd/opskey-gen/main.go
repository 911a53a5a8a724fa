package main

import (
	"fmt"
	"log"

	"civitas.backend/pkg/crypto"
)

// Generates a fresh operations API key together with the bcrypt hash to put
// in OPS_API_KEY_HASH. The key itself is printed once and never persisted.
func main() {
	key, err := crypto.GenerateRandomToken(32)
	if err != nil {
		log.Fatalf("failed to generate key: %v", err)
	}

	hash, err := crypto.HashSecret(key)
	if err != nil {
		log.Fatalf("failed to hash key: %v", err)
	}

	fmt.Println("🔑 Ops API key (hand to the operator, shown once):")
	fmt.Println(key)
	fmt.Println()
	fmt.Println("🔒 OPS_API_KEY_HASH (put in the server environment):")
	fmt.Println(hash)
}
