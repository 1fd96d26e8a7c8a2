// Command devtoken mints an access token signed with JWT_SECRET for local
// development and manual API testing.
//
//	devtoken -tenant t1 -role owner
//	devtoken -sub cust-1 -role customer -ttl 2h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/iliyamo/reservation-engine/internal/config"
	"github.com/iliyamo/reservation-engine/internal/utils"
)

func main() {
	sub := flag.String("sub", "", "customer id (sub claim)")
	tenant := flag.String("tenant", "", "tenant id for staff tokens")
	role := flag.String("role", "customer", "role claim: owner, staff or customer")
	ttl := flag.Duration("ttl", 0, "token lifetime; defaults to ACCESS_TOKEN_TTL_MIN")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lifetime := *ttl
	if lifetime <= 0 {
		lifetime = cfg.AccessTTL()
	}

	tok, err := utils.NewAccessToken(cfg.JWTSecret, utils.Claims{Subject: *sub, TenantID: *tenant, Role: *role}, lifetime)
	if err != nil {
		log.Fatalf("mint token: %v", err)
	}
	fmt.Fprintln(os.Stdout, tok.Token)
	fmt.Fprintf(os.Stderr, "expires %s\n", tok.Exp.Format(time.RFC3339))
}
