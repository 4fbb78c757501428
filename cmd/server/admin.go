package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/go-extras/cobraflags"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"listmyspace/server/internal/auth"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and list the applied ones",
		RunE:  runMigrate,
	}
}

func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := db.AppliedMigrations()
	if err != nil {
		return err
	}
	versions := make([]string, 0, len(applied))
	for version := range applied {
		versions = append(versions, version)
	}
	sort.Strings(versions)
	for _, version := range versions {
		logger.WithFields(logrus.Fields{
			"version":    version,
			"name":       applied[version].Name,
			"applied_at": applied[version].AppliedAt,
		}).Info("Migration applied")
	}
	return nil
}

const (
	usernameFlag = "username"
	passwordFlag = "password"
)

var adminFlags = map[string]cobraflags.Flag{
	usernameFlag: &cobraflags.StringFlag{
		Name:  usernameFlag,
		Value: "admin",
		Usage: "Username of the administrator",
	},
	passwordFlag: &cobraflags.StringFlag{
		Name:  passwordFlag,
		Value: "",
		Usage: "Password of the administrator; ADMIN_PASSWORD is used when empty",
	},
}

func newCreateAdminCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: `Create an administrator account.

Administrators cannot be registered through the API; this command is the only way to create one.`,
		RunE: runCreateAdmin,
	}
	cobraflags.RegisterMap(cmd, adminFlags)
	return cmd
}

func runCreateAdmin(_ *cobra.Command, _ []string) error {
	username := adminFlags[usernameFlag].GetString()
	password := adminFlags[passwordFlag].GetString()
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := db.CreateAdmin(context.Background(), username, hash)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"user_id":  user.ID,
		"username": user.Username,
	}).Info("Administrator created")
	return nil
}
