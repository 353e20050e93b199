package main

import (
	"fmt"
	"os"

	"github.com/nestlink/guardian-server-go/internal/util"
)

// Prints a fresh device token together with the hash stored in the
// users table. Run with: go run scripts/gen-device-token.go
func main() {
	token, err := util.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("token: %s\n", token)
	fmt.Printf("hash:  %s\n", util.HashToken(token))
}
