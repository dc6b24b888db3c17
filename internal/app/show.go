package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/storage"
)

// Show prints recent persisted sales, or the alert audit trail when
// opts.Alerts is set.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show history")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if opts.Alerts {
		return showAlertAudit(ctx, store, opts.Limit)
	}
	return showSales(ctx, store, opts.Limit)
}

func showSales(ctx context.Context, store *storage.Store, limit int) error {
	sales, err := store.ListRecentSales(ctx, limit)
	if err != nil {
		return err
	}
	if len(sales) == 0 {
		fmt.Fprintln(os.Stdout, "no sales found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSeller\tStore\tAmount\tGoal")

	for _, sale := range sales {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\n",
			sale.OccurredAt.UTC().Format(time.RFC3339),
			sale.SellerName,
			sale.StoreName,
			sale.Amount.StringFixed(2),
			sale.Goal.StringFixed(2),
		)
	}

	writer.Flush()
	return nil
}

func showAlertAudit(ctx context.Context, store *storage.Store, limit int) error {
	rows, err := store.ListRecentAlertAudit(ctx, limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no alert audit entries found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tAction\tEntity\tCategory\tSeverity\tAlert ID")

	for _, row := range rows {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\n",
			row.CreatedAt.UTC().Format(time.RFC3339),
			row.Action,
			row.EntityRef,
			row.Category,
			row.Severity,
			row.AlertID,
		)
	}

	writer.Flush()
	return nil
}
