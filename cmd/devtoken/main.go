// Command devtoken prints a bearer token for local testing.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/suPer8Hu/creator-scout/internal/auth"
	"github.com/suPer8Hu/creator-scout/internal/config"
)

func main() {
	uid := flag.Uint64("user", 1, "user id to embed")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg := config.Load()
	tok, err := auth.SignJWT(*uid, cfg.JWTSecret, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sign token:", err)
		os.Exit(1)
	}
	fmt.Println(tok)
}
