package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"craftcrm/internal/config"

	"github.com/spf13/cobra"
)

var (
	tokenUserID string
	tokenRoles  []string
	tokenTTL    time.Duration
)

// token 子命令：为本地联调签发 HS256 JWT
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development JWT",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenUserID == "" {
			return fmt.Errorf("--user is required")
		}
		cfg := config.Load()
		secret := cfg.JWT.Secret
		if secret == "" {
			return fmt.Errorf("jwt.secret is not configured")
		}

		now := time.Now()
		claims := map[string]interface{}{
			"user_id": tokenUserID,
			"roles":   tokenRoles,
			"iat":     now.Unix(),
			"exp":     now.Add(tokenTTL).Unix(),
		}
		token, err := signHS256(secret, claims)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func signHS256(secret string, claims map[string]interface{}) (string, error) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode claims: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(payloadJSON)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(header + "." + payload))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return header + "." + payload + "." + sig, nil
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUserID, "user", "", "user id (uuid)")
	tokenCmd.Flags().StringSliceVar(&tokenRoles, "roles", []string{"member"}, "roles to embed")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
