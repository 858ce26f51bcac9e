package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"admin-console/internal/app"
	"admin-console/internal/config"
	"admin-console/internal/model"
	"admin-console/internal/service"
)

var authdCmd = &cobra.Command{
	Use:   "authd",
	Short: "Run the identity and verify authority",
	Long: `authd serves password sign-in, token refresh and the admin verify
endpoint from PostgreSQL. Its subcommands manage identities and admin grants
directly in the database.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadAuthd()
		if err != nil {
			return err
		}

		authd, err := app.NewAuthd(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize authd: %w", err)
		}

		return authd.Run(cmd.Context())
	},
}

var (
	userEmail     string
	userPassword  string
	userName      string
	passwordStdin bool
	adminRole     string
	adminAccess   []string
	auditQuery    model.AuditQuery
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage password identities",
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a password identity",
	Args:  cobra.NoArgs,
	RunE: withAuthority(func(ctx context.Context, authority *app.Authority) error {
		password, err := readPassword()
		if err != nil {
			return err
		}

		rec, err := authority.Identities.CreateIdentity(ctx, userEmail, password, userName)
		if err != nil {
			return err
		}

		fmt.Printf("Created identity %s (%s)\n", rec.Email, rec.UID)
		return nil
	}),
}

var userPasswordCmd = &cobra.Command{
	Use:   "set-password",
	Short: "Replace an identity's password and revoke its sessions",
	Args:  cobra.NoArgs,
	RunE: withAuthority(func(ctx context.Context, authority *app.Authority) error {
		password, err := readPassword()
		if err != nil {
			return err
		}

		if err := authority.Identities.ResetPassword(ctx, userEmail, password); err != nil {
			return err
		}

		fmt.Printf("Password updated for %s\n", userEmail)
		return nil
	}),
}

var userDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Block sign-in for an identity",
	Args:  cobra.NoArgs,
	RunE: withAuthority(func(ctx context.Context, authority *app.Authority) error {
		if err := authority.Identities.SetDisabled(ctx, userEmail, true); err != nil {
			return err
		}

		fmt.Printf("Disabled %s\n", userEmail)
		return nil
	}),
}

var userEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Allow sign-in for a disabled identity",
	Args:  cobra.NoArgs,
	RunE: withAuthority(func(ctx context.Context, authority *app.Authority) error {
		if err := authority.Identities.SetDisabled(ctx, userEmail, false); err != nil {
			return err
		}

		fmt.Printf("Enabled %s\n", userEmail)
		return nil
	}),
}

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin grants",
}

var adminGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Grant an identity an admin role",
	Long: `Grant an identity an admin role. ADMIN holders only reach the sections
named by --access; SUPER_ADMIN reaches every section.`,
	Args: cobra.NoArgs,
	RunE: withAuthority(func(ctx context.Context, authority *app.Authority) error {
		rec, err := authority.Admins.Grant(ctx, userEmail, adminRole, adminAccess)
		if err != nil {
			return err
		}

		fmt.Printf("Granted %s to %s %v\n", rec.Role, rec.Email, rec.AdminAccess)
		return nil
	}),
}

var adminRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Remove an identity's admin grant",
	Args:  cobra.NoArgs,
	RunE: withAuthority(func(ctx context.Context, authority *app.Authority) error {
		if err := authority.Admins.Revoke(ctx, userEmail); err != nil {
			return err
		}

		fmt.Printf("Revoked admin grant of %s\n", userEmail)
		return nil
	}),
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List admin grants",
	Args:  cobra.NoArgs,
	RunE: withAuthority(func(ctx context.Context, authority *app.Authority) error {
		admins, err := authority.Admins.List(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "EMAIL\tROLE\tACCESS\tDISABLED")
		for _, rec := range admins {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", rec.Email, rec.Role, strings.Join(rec.AdminAccess, ","), rec.Disabled)
		}
		return w.Flush()
	}),
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the authority audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit entries, newest first",
	Args:  cobra.NoArgs,
	RunE: withAuthority(func(ctx context.Context, authority *app.Authority) error {
		entries, meta, err := authority.Audit.Query(ctx, auditQuery)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tACTION\tSTATUS\tSUBJECT\tACTOR\tERROR")
		for _, entry := range entries {
			actor := entry.Actor.Email
			if actor == "" {
				actor = entry.Actor.IP
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				entry.OccurredAt.Local().Format(time.DateTime), entry.Action, entry.Status, entry.Subject, actor, entry.Error)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		fmt.Printf("page %d of %d (%d entries)\n", meta.Page, meta.TotalPages, meta.Total)
		return nil
	}),
}

func init() {
	for _, cmd := range []*cobra.Command{userAddCmd, userPasswordCmd, userDisableCmd, userEnableCmd, adminGrantCmd, adminRevokeCmd} {
		cmd.Flags().StringVar(&userEmail, "email", "", "Identity email")
		_ = cmd.MarkFlagRequired("email")
	}
	for _, cmd := range []*cobra.Command{userAddCmd, userPasswordCmd} {
		cmd.Flags().StringVar(&userPassword, "password", "", "Password (prefer --password-stdin)")
		cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	}
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	adminGrantCmd.Flags().StringVar(&adminRole, "role", "ADMIN", "ADMIN or SUPER_ADMIN")
	adminGrantCmd.Flags().StringSliceVar(&adminAccess, "access", nil, "Permissions for an ADMIN, e.g. PRODUCTS,ORDERS")

	auditFlags := auditListCmd.Flags()
	auditFlags.StringVar(&auditQuery.Action, "action", "", "Filter by action, e.g. sign_in or admin_grant")
	auditFlags.StringVar(&auditQuery.Subject, "subject", "", "Filter by subject email or uid")
	auditFlags.StringVar(&auditQuery.Status, "status", "", "success or failure")
	auditFlags.StringVar(&auditQuery.From, "from", "", "RFC 3339 lower bound")
	auditFlags.StringVar(&auditQuery.To, "to", "", "RFC 3339 upper bound")
	auditFlags.IntVar(&auditQuery.Page, "page", 1, "Page number")
	auditFlags.IntVar(&auditQuery.Limit, "limit", 50, "Entries per page")

	userCmd.AddCommand(userAddCmd, userPasswordCmd, userDisableCmd, userEnableCmd)
	adminCmd.AddCommand(adminGrantCmd, adminRevokeCmd, adminListCmd)
	auditCmd.AddCommand(auditListCmd)
	authdCmd.AddCommand(userCmd, adminCmd, auditCmd)
}

func loadAuthd() (*config.AuthdConfig, error) {
	cfg, err := config.LoadAuthd()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setupLogger(cfg.LogFormat, cfg.LogLevel)
	return cfg, nil
}

// withAuthority runs fn against the authd database.
func withAuthority(fn func(ctx context.Context, authority *app.Authority) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadAuthd()
		if err != nil {
			return err
		}

		authority, err := app.OpenAuthority(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer authority.Close()

		return fn(service.WithActor(cmd.Context(), cliActor()), authority)
	}
}

// cliActor names the operator in audit entries written by subcommands.
func cliActor() model.AuditActor {
	name := "cli"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = "cli:" + u.Username
	}
	return model.AuditActor{Email: name}
}

func readPassword() (string, error) {
	if !passwordStdin {
		if userPassword == "" {
			return "", errors.New("--password or --password-stdin is required")
		}
		return userPassword, nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
