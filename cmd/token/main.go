// Command token issues API bearer tokens for a caller address and bcrypt
// hashes for METRICS_PASSWORD_HASH.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"tinysubs/pkg/address"
	"tinysubs/pkg/hash"
	"tinysubs/pkg/jwt"
)

func main() {
	addr := flag.String("address", "", "caller address the token authenticates")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	password := flag.String("hash-password", "", "print the bcrypt hash of this password and exit")
	flag.Parse()

	if *password != "" {
		h, err := hash.HashPassword(*password)
		if err != nil {
			fail(err)
		}
		fmt.Println(h)
		return
	}

	_ = godotenv.Load()
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		fail(fmt.Errorf("JWT_SECRET is not set"))
	}
	caller, err := address.Parse(*addr)
	if err != nil {
		fail(fmt.Errorf("-address: %w", err))
	}
	tok, err := jwt.GenerateToken(secret, caller, *ttl)
	if err != nil {
		fail(err)
	}
	fmt.Println(tok)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "token:", err)
	os.Exit(1)
}
