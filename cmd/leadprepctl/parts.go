package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Lokman32/leadprep/internal/app"
	"github.com/Lokman32/leadprep/internal/catalog"
)

func newPartsCmd(open func(*cobra.Command) (*app.App, error)) *cobra.Command {
	var p catalog.Part
	var class string
	add := &cobra.Command{
		Use:   "add IDENTIFIER",
		Short: "Add a part to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd)
			if err != nil {
				return err
			}
			p.Identifier = args[0]
			p.Class = catalog.Class(class)
			created, err := a.Catalog().Create(cmd.Context(), p)
			if err != nil {
				return errors.Wrapf(err, "failed to add part %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s on rack %s\n", created.Key, created.Rack)
			return nil
		},
	}
	f := add.Flags()
	f.StringVar(&p.Rack, "rack", "", "storage rack")
	f.StringVar(&p.AltIdentifier, "alt", "", "alternate identifier")
	f.StringVar(&class, "class", "", "standard or alternate (default derived from --alt)")
	f.IntVar(&p.Packaging, "packaging", 0, "units per package")
	f.StringVar(&p.Unit, "unit", "", "unit of measure")
	f.StringVar(&p.Type, "type", "", "part type")
	f.StringVar(&p.Description, "description", "", "description")
	f.IntVar(&p.SortOrder, "sort", 0, "sort order on the catalog")

	parts := &cobra.Command{Use: "parts", Short: "Manage the parts catalog"}
	parts.AddCommand(add)
	return parts
}
