package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stanstork/campus-api/internal/authz"
	"github.com/stanstork/campus-api/internal/config"
	"github.com/stanstork/campus-api/internal/models"
	"github.com/stanstork/campus-api/internal/notification"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		app.close()
		return nil
	},
}

var dispatchFlags struct {
	sender   string
	audience string
	kind     string
	title    string
	message  string
	payload  string
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Send one notification to an audience",
	Example: `  campus-api dispatch --sender admin-1 --audience '{"kind":"all_teachers"}' \
    --type announcement --title "Staff meeting" --message "Friday 3pm, hall B"`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var spec models.AudienceSpec
		if err := json.Unmarshal([]byte(dispatchFlags.audience), &spec); err != nil {
			return fmt.Errorf("parsing --audience: %w", err)
		}
		content := models.Content{
			Type:    dispatchFlags.kind,
			Title:   dispatchFlags.title,
			Message: dispatchFlags.message,
		}
		if dispatchFlags.payload != "" {
			content.Payload = json.RawMessage(dispatchFlags.payload)
		}

		app, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer app.close()

		var sender *string
		if s := strings.TrimSpace(dispatchFlags.sender); s != "" {
			sender = &s
		}

		result, err := app.notificationService().Dispatch(cmd.Context(), sender, spec, content)
		out := cmd.OutOrStdout()
		var partial *notification.PartialDispatchError
		switch {
		case errors.As(err, &partial):
			fmt.Fprintf(out, "created %d notifications, %d failed\n", len(partial.Succeeded), len(partial.Failed))
			for _, f := range partial.Failed {
				fmt.Fprintf(out, "  %s: %v\n", f.RecipientID, f.Err)
			}
			return err
		case err != nil:
			return err
		}
		fmt.Fprintf(out, "created %d notifications\n", result.RecipientCount)
		return nil
	},
}

var tokenFlags struct {
	user  string
	roles []string
	ttl   time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local testing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.RequireJWTSecret(); err != nil {
			return err
		}
		roles := make([]models.Role, 0, len(tokenFlags.roles))
		for _, r := range tokenFlags.roles {
			role := models.NormalizeRole(models.Role(r))
			if !models.IsValidRole(role) {
				return fmt.Errorf("unknown role %q", r)
			}
			roles = append(roles, role)
		}
		token, err := authz.IssueToken(cfg.JWTSecret, tokenFlags.user, roles, tokenFlags.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	f := dispatchCmd.Flags()
	f.StringVar(&dispatchFlags.sender, "sender", "", "sender user id")
	f.StringVar(&dispatchFlags.audience, "audience", "", `audience as JSON, e.g. {"kind":"department","department_id":"7"}`)
	f.StringVar(&dispatchFlags.kind, "type", "", "notification type")
	f.StringVar(&dispatchFlags.title, "title", "", "notification title")
	f.StringVar(&dispatchFlags.message, "message", "", "notification message")
	f.StringVar(&dispatchFlags.payload, "payload", "", "optional JSON payload")
	_ = dispatchCmd.MarkFlagRequired("audience")

	tf := tokenCmd.Flags()
	tf.StringVar(&tokenFlags.user, "user", "", "user id for the sub claim")
	tf.StringSliceVar(&tokenFlags.roles, "role", []string{string(models.RoleStudent)}, "role claim, repeatable")
	tf.DurationVar(&tokenFlags.ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}
