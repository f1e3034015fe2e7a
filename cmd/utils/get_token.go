package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"tcar-claims-service/internal/infrastructure/config"
	"tcar-claims-service/internal/infrastructure/oauth"
	"tcar-claims-service/pkg/logger"

	"github.com/google/uuid"
)

// get_token walks through the OAuth consent flow once and prints the Gmail
// refresh token to put in GMAIL_REFRESH_TOKEN.
func main() {
	log := logger.NewLogger("info")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	if cfg.GmailClientID == "" || cfg.GmailClientSecret == "" {
		log.Fatal("GMAIL_CLIENT_ID and GMAIL_CLIENT_SECRET are required")
	}

	gmailOAuth := oauth.NewGmailOAuth(
		cfg.GmailClientID,
		cfg.GmailClientSecret,
		"",
		"http://localhost:8090/oauth2callback",
		log,
	)

	state := uuid.NewString()

	// Start an HTTP server to handle the OAuth callback
	http.HandleFunc("/oauth2callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		token, err := gmailOAuth.ExchangeCode(context.Background(), r.URL.Query().Get("code"))
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to exchange code: %v", err), http.StatusInternalServerError)
			return
		}

		tokenJSON, err := gmailOAuth.TokenToJSON(token)
		if err != nil {
			log.Error("Failed to encode token", "error", err)
		}
		fmt.Printf("\nRefresh Token: %s\n\n%s\n", token.RefreshToken, tokenJSON)

		fmt.Fprintf(w, "Authentication successful! You can close this window.")
		os.Exit(0)
	})

	fmt.Printf("Open this URL in your browser:\n%s\n", gmailOAuth.GenerateAuthURL(state))

	if err := http.ListenAndServe(":8090", nil); err != nil {
		log.Fatal("Callback server error", "error", err)
	}
}
