package main

import (
	"encoding/json"
	"fmt"
	"time"

	"voiceguard/internal/auth"

	"github.com/spf13/cobra"
)

var (
	issueUser string
	issueRole string
	issueTTL  time.Duration
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue an access token",
	Long: `Issue an access token for a directory identity.

Participants may only submit and query for themselves; operators may act for
any identity and provision directory entries.

Examples:
  tokenctl issue --user 7003
  tokenctl issue --user ops --role operator --ttl 1h --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if issueUser == "" {
			return fmt.Errorf("--user is required")
		}
		if !auth.IsKnownRole(issueRole) {
			return fmt.Errorf("unknown role %q", issueRole)
		}

		cfg, err := loadAuth()
		if err != nil {
			return err
		}
		m, err := auth.NewManager(cfg)
		if err != nil {
			return err
		}

		ttl := issueTTL
		if ttl <= 0 {
			ttl = cfg.AccessTokenTTL
		}
		if ttl <= 0 {
			ttl = 12 * time.Hour
		}
		now := time.Now()
		tok, err := m.Issue(now, issueUser, issueRole, ttl)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if flagJSON {
			return json.NewEncoder(out).Encode(map[string]any{
				"access_token": tok,
				"user_id":      issueUser,
				"role":         issueRole,
				"expires_at":   now.Add(ttl).UTC(),
			})
		}
		fmt.Fprintln(out, tok)
		return nil
	},
}

func init() {
	issueCmd.Flags().StringVar(&issueUser, "user", "", "identity id the token speaks for")
	issueCmd.Flags().StringVar(&issueRole, "role", auth.RoleParticipant, "participant or operator")
	issueCmd.Flags().DurationVar(&issueTTL, "ttl", 0, "token lifetime (defaults to JWT_ACCESS_TTL, then 12h)")
}
