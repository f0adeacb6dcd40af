//go:build ignore

// generate_hash prints the argon2id hash of an operator token.
// Usage: go run scripts/generate_hash.go <token>
//
// Put the output into .env as OPERATOR_TOKEN_HASH.
package main

import (
	"fmt"
	"os"

	"serotonyl.ru/settlement-engine/internal/common"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: go run scripts/generate_hash.go <token>")
		os.Exit(1)
	}

	hash, err := common.HashArgon2id(os.Args[1])
	if err != nil {
		fmt.Printf("hash failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("OPERATOR_TOKEN_HASH:")
	fmt.Println(hash)
}
