// Package main is a utility for generating bcrypt hashes of passwords. The
// server stores only bcrypt hashes, so this tool is used when manually
// resetting an account's password directly in the users table without running
// the full server.
//
// Usage: hash <password>
package main

import (
	"fmt"
	"os"

	"github.com/launchboard/launchboard/internal/auth"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: hash <password>")
		os.Exit(2)
	}
	hash, err := auth.HashPassword(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
