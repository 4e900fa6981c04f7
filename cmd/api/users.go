package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

var (
	userName     string
	userEmail    string
	userPassword string
	userRole     string
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account with the given role",
	RunE:  runUsersCreate,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Verify credentials and print a bearer token",
	RunE:  runToken,
}

func init() {
	usersCreateCmd.Flags().StringVar(&userName, "name", "", "display name")
	usersCreateCmd.Flags().StringVar(&userEmail, "email", "", "login email")
	usersCreateCmd.Flags().StringVar(&userPassword, "password", "", "password (min 8 characters)")
	usersCreateCmd.Flags().StringVar(&userRole, "role", string(domain.RoleUser), "user, technician or admin")
	_ = usersCreateCmd.MarkFlagRequired("email")
	_ = usersCreateCmd.MarkFlagRequired("password")
	usersCmd.AddCommand(usersCreateCmd)

	tokenCmd.Flags().StringVar(&userEmail, "email", "", "login email")
	tokenCmd.Flags().StringVar(&userPassword, "password", "", "password")
	_ = tokenCmd.MarkFlagRequired("email")
	_ = tokenCmd.MarkFlagRequired("password")
}

func runUsersCreate(cmd *cobra.Command, _ []string) error {
	application, err := bootstrap(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer shutdown(application)

	user, err := application.Accounts.CreateAccount(cmd.Context(), service.AccountInput{
		Name:     userName,
		Email:    userEmail,
		Password: userPassword,
	}, domain.Role(userRole))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", user.ID, user.Email, user.Role)
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	application, err := bootstrap(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer shutdown(application)

	issued, err := application.Accounts.IssueToken(cmd.Context(), userEmail, userPassword)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), issued.Token)
	return nil
}
