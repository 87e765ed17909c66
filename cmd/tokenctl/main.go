// Command tokenctl is the operator CLI for voiceguard.
//
// Usage:
//
//	tokenctl issue --user <id> [--role participant|operator] [--ttl 12h]
//	tokenctl participant add --id <id> --phone <phone> [--name <name>]
//	tokenctl schema apply
//
// Settings come from the same environment variables as the API (JWT_*, DB_*).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
