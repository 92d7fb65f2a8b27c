// Command admin-token mints a bearer token for the back-office endpoints.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/patternseek/ecommerce/pkg/auth"
	"github.com/patternseek/ecommerce/pkg/config"
	"github.com/patternseek/ecommerce/pkg/enums"
)

func main() {
	_ = godotenv.Load()

	subject := flag.String("subject", "", "who the token is issued to, e.g. an email address")
	role := flag.String("role", string(enums.AdminRoleReviewer), "reviewer|admin")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to ECOMMERCE_ADMIN_TOKEN_TTL")
	flag.Parse()

	cfg, err := config.LoadAdminAuth()
	if err != nil {
		exitf("%v", err)
	}
	if *ttl > 0 {
		cfg.TokenTTL = *ttl
	}

	parsedRole, err := enums.ParseAdminRole(*role)
	if err != nil {
		exitf("%v", err)
	}

	token, err := auth.MintAdminToken(cfg, time.Now(), auth.AdminTokenPayload{Subject: *subject, Role: parsedRole})
	if err != nil {
		exitf("failed to mint token: %v", err)
	}
	fmt.Println(token)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
