package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hostelattendance/internal/app"
	"hostelattendance/internal/identity"
)

var (
	adminName     string
	adminEmail    string
	adminPassword string
)

// createAdminCmd bootstraps the first administrator
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	Long: `Create an administrator account unless the email is already registered.

The password is read from --password or, when that is empty, from
HOSTEL_ADMIN_PASSWORD.`,
	Args: cobra.NoArgs,
	RunE: runCreateAdmin,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "display name")
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "login email (required)")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "login password")
	_ = createAdminCmd.MarkFlagRequired("email")
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	password := adminPassword
	if password == "" {
		password = os.Getenv("HOSTEL_ADMIN_PASSWORD")
	}
	if password == "" {
		return errors.New("a password is required: pass --password or set HOSTEL_ADMIN_PASSWORD")
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	backends, err := app.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = backends.Close() }()

	people := identity.NewService(backends.People, cfg.BcryptCost)
	p, created, err := people.EnsureAdmin(cmd.Context(), adminName, adminEmail, password)
	if err != nil {
		return err
	}
	if !created {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already registered (role %s)\n", p.Email, p.Role)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", p.Email, p.ID)
	return nil
}
