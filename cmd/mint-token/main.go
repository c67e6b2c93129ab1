package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/coinly/coinadmin-api/internal/config"
	"github.com/coinly/coinadmin-api/internal/pkg/jwt"
)

// Dev utility: mints an operator token for local testing. Real operator
// tokens come from the identity service; this exists so the API can be
// exercised without it.
func main() {
	operatorFlag := flag.String("operator", "", "operator UUID (random if empty)")
	roleFlag := flag.String("role", "operator", "role claim: operator or admin")
	flag.Parse()

	cfg := config.Load()

	operatorID := uuid.New()
	if *operatorFlag != "" {
		parsed, err := uuid.Parse(*operatorFlag)
		if err != nil {
			log.Fatalf("Invalid operator UUID: %v", err)
		}
		operatorID = parsed
	}

	if *roleFlag != "operator" && *roleFlag != "admin" {
		log.Fatalf("Invalid role %q: must be operator or admin", *roleFlag)
	}

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)
	token, err := jwtService.GenerateToken(operatorID, *roleFlag)
	if err != nil {
		log.Fatalf("Failed to mint token: %v", err)
	}

	fmt.Println("--- Operator token ---")
	fmt.Printf("Operator: %s\n", operatorID)
	fmt.Printf("Role:     %s\n", *roleFlag)
	fmt.Printf("TTL:      %s\n", cfg.JWTAccessTTL)
	fmt.Println("----------------------")
	fmt.Println(token)
}
