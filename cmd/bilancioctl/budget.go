package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bilancio/internal/budget"
	"bilancio/internal/core"
)

func newBudgetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show and edit a month's budget",
	}

	var showMonth string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print a month's budget and its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.load(cmd, showMonth)
			if err != nil {
				return err
			}
			return a.printBudget(cmd.OutOrStdout(), session.Snapshot())
		},
	}
	show.Flags().StringVarP(&showMonth, "month", "m", "", "month as YYYY-MM (default current)")

	var (
		setMonth string
		paid     bool
		unpaid   bool
	)
	set := &cobra.Command{
		Use:   "set <category-id> <amount>",
		Short: "Set one line of a month's budget and save it",
		Example: `  bilancioctl budget set 3f0c... 800 --paid
  bilancioctl budget set 3f0c... 0 --unpaid --month 2025-02`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.load(cmd, setMonth)
			if err != nil {
				return err
			}
			id := args[0]
			if err := session.SetAmount(id, args[1]); err != nil {
				return fmt.Errorf("%s: %w", id, err)
			}
			if paid || unpaid {
				if err := session.SetPaid(id, paid); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
			}
			if err := session.Save(cmd.Context()); err != nil {
				return err
			}
			snap := session.Snapshot()
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s: available %s\n",
				snap.Month, a.money.Money(snap.Summary.TotalAvailable))
			return nil
		},
	}
	set.Flags().StringVarP(&setMonth, "month", "m", "", "month as YYYY-MM (default current)")
	set.Flags().BoolVar(&paid, "paid", false, "mark the line as paid")
	set.Flags().BoolVar(&unpaid, "unpaid", false, "mark the line as not paid")
	set.MarkFlagsMutuallyExclusive("paid", "unpaid")

	cmd.AddCommand(show, set)
	return cmd
}

// load opens the user's session on month, the current month when empty.
func (a *app) load(cmd *cobra.Command, month string) (*budget.Session, error) {
	m := core.CurrentMonth()
	if month != "" {
		var err error
		if m, err = core.ParseMonth(month); err != nil {
			return nil, err
		}
	}
	session, err := a.manager.Session(a.userID)
	if err != nil {
		return nil, err
	}
	if err := session.Load(cmd.Context(), m); err != nil {
		return nil, err
	}
	if notice := session.Snapshot().Notice; notice != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), notice)
	}
	return session, nil
}

func (a *app) printBudget(out io.Writer, snap budget.Snapshot) error {
	fmt.Fprintf(out, "Budget %s (%s)\n\n", snap.Month, snap.UserID)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCATEGORY\tKIND\tAMOUNT\tPAID")
	for _, it := range snap.Items {
		amount := "-"
		if it.Amount != "" {
			amount = a.money.Money(core.CoerceAmount(it.Amount))
		}
		paid := "no"
		if it.Paid {
			paid = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", it.CategoryID, it.CategoryName, it.Kind, amount, paid)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	sum := snap.Summary
	w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Salary income\t%s\n", a.money.Money(sum.TotalSalaryIncome))
	fmt.Fprintf(w, "Paid\t%s\n", a.money.Money(sum.TotalPaid))
	fmt.Fprintf(w, "Available\t%s\n", a.money.Money(sum.TotalAvailable))
	fmt.Fprintf(w, "Pending (%s)\t%s\n", a.money.Count(len(sum.PendingItems)), a.money.Money(sum.TotalPending))
	fmt.Fprintf(w, "Available after budget\t%s\n", a.money.Money(sum.AvailableBudgeted))
	if snap.UpdatedAt != nil {
		fmt.Fprintf(w, "Last saved\t%s\n", snap.UpdatedAt.Format("2006-01-02 15:04 MST"))
	} else {
		fmt.Fprintln(w, "Last saved\tnever")
	}
	return w.Flush()
}
