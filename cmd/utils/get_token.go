// Command get_token links a mailbox by running the OAuth consent flow locally
// and printing the token to store on the account row.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"travelsync-service/internal/domain/entity"
	"travelsync-service/internal/infrastructure/oauth"
)

func main() {
	godotenv.Load()

	kind := flag.String("provider", string(entity.ProviderGmail), "gmail or outlook")
	addr := flag.String("addr", "localhost:8090", "callback listen address")
	flag.Parse()

	var creds oauth.ClientCredentials
	switch entity.ProviderKind(*kind) {
	case entity.ProviderGmail:
		creds = oauth.ClientCredentials{ClientID: os.Getenv("GOOGLE_CLIENT_ID"), ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET")}
	case entity.ProviderOutlook:
		creds = oauth.ClientCredentials{ClientID: os.Getenv("MICROSOFT_CLIENT_ID"), ClientSecret: os.Getenv("MICROSOFT_CLIENT_SECRET")}
	default:
		log.Fatalf("unsupported provider %q", *kind)
	}

	endpoint, _ := oauth.DefaultEndpoint(entity.ProviderKind(*kind))
	config, err := oauth.NewConfig(entity.ProviderKind(*kind), creds, endpoint, "http://"+*addr+"/oauth2callback")
	if err != nil {
		log.Fatal(err)
	}

	state := uuid.NewString()

	http.HandleFunc("/oauth2callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		token, err := oauth.ExchangeCode(context.Background(), config, r.URL.Query().Get("code"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		out, err := oauth.TokenToJSON(token)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		fmt.Printf("\n%s\n\n", out)

		fmt.Fprintf(w, "Authentication successful! You can close this window.")
		os.Exit(0)
	})

	fmt.Printf("Open this URL in your browser:\n%s\n", oauth.GenerateAuthURL(config, state))

	log.Fatal(http.ListenAndServe(*addr, nil))
}
