package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Lokman32/leadprep/internal/app"
	"github.com/Lokman32/leadprep/internal/auth"
)

func newUsersCmd(open func(*cobra.Command) (*app.App, error)) *cobra.Command {
	var name, role string
	add := &cobra.Command{
		Use:   "add MATRICULE",
		Short: "Register a badge holder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			svc, _, err := a.Auth()
			if err != nil {
				return errors.Wrap(err, "failed to init auth")
			}
			u := auth.User{Matricule: args[0], Role: auth.Role(role), Name: name}
			if err := svc.Register(cmd.Context(), u); err != nil {
				return errors.Wrapf(err, "failed to add user %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", args[0], role)
			return nil
		},
	}
	add.Flags().StringVar(&role, "role", string(auth.RoleOperator), "admin, operator or logistic")
	add.Flags().StringVar(&name, "name", "", "display name")

	users := &cobra.Command{Use: "users", Short: "Manage users"}
	users.AddCommand(add)
	return users
}
