package provider

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ServiceAccount is the credential document loaded at startup. The
// private key signs the token-exchange assertion.
type ServiceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
}

func LoadServiceAccount(path string) (*ServiceAccount, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var sa ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if strings.TrimSpace(sa.ClientEmail) == "" {
		return nil, fmt.Errorf("credentials missing client_email")
	}
	if strings.TrimSpace(sa.PrivateKey) == "" {
		return nil, fmt.Errorf("credentials missing private_key")
	}
	if strings.TrimSpace(sa.TokenURI) == "" {
		return nil, fmt.Errorf("credentials missing token_uri")
	}
	return &sa, nil
}
