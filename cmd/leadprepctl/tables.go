package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Lokman32/leadprep/internal/app"
	"github.com/Lokman32/leadprep/internal/aws"
)

func newTablesCmd(open func(*cobra.Command) (*app.App, error)) *cobra.Command {
	tables := &cobra.Command{Use: "tables", Short: "Manage DynamoDB tables"}
	tables.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create any missing tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			if a.Clients == nil {
				return errors.New("tables create requires store.driver=dynamodb")
			}
			created, err := aws.EnsureTables(cmd.Context(), a.Clients.DynamoDB, app.TableSpecs(a.Config.Tables))
			if err != nil {
				return errors.Wrap(err, "failed to create tables")
			}
			if len(created) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "all tables already exist")
			}
			for _, name := range created {
				fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", name)
			}
			return nil
		},
	})
	return tables
}
