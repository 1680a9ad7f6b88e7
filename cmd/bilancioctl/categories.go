package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bilancio/internal/core"
	"bilancio/internal/ports"
)

func newCategoriesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cat"},
		Short:   "List and edit budget categories",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories, expenses first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cats, err := a.res.Directory.List(cmd.Context(), a.userID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tNAME")
			for _, c := range cats {
				fmt.Fprintf(w, "%s\t%s\t%s\n", c.ID, c.Kind, c.Name)
			}
			return w.Flush()
		},
	}

	var addKind string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a category",
		Example: `  bilancioctl categories add Rent
  bilancioctl categories add Salary --kind income`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := core.ParseKind(addKind)
			if err != nil {
				return err
			}
			c, err := a.res.Directory.Create(cmd.Context(), a.userID, args[0], kind)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.ID)
			return nil
		},
	}
	add.Flags().StringVarP(&addKind, "kind", "k", string(core.KindExpense), "expense or income")

	var renameKind string
	rename := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a category, optionally changing its kind",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := a.owned(cmd, args[0])
			if err != nil {
				return err
			}
			kind := current.Kind
			if renameKind != "" {
				if kind, err = core.ParseKind(renameKind); err != nil {
					return err
				}
			}
			return a.res.Directory.Update(cmd.Context(), current.ID, args[1], kind)
		},
	}
	rename.Flags().StringVarP(&renameKind, "kind", "k", "", "new kind: expense or income")

	rm := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a category",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.owned(cmd, args[0])
			if err != nil {
				return err
			}
			return a.res.Directory.Delete(cmd.Context(), c.ID)
		},
	}

	cmd.AddCommand(list, add, rename, rm)
	return cmd
}

// owned looks id up in the user's own list.
func (a *app) owned(cmd *cobra.Command, id string) (core.Category, error) {
	cats, err := a.res.Directory.List(cmd.Context(), a.userID)
	if err != nil {
		return core.Category{}, err
	}
	for _, c := range cats {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Category{}, fmt.Errorf("%w: %s", ports.ErrCategoryNotFound, id)
}
