// Command orders lists placed orders and updates their shipping status.
//
//	orders [flags] pending
//	orders [flags] shipped
//	orders [flags] show <id>
//	orders [flags] ship <id>
//	orders [flags] unship <id>
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bookstore/internal/domain/order"
	"github.com/xenking/bookstore/internal/repository"
)

var errUsage = errors.New("usage: orders [flags] pending|shipped|show <id>|ship <id>|unship <id>")

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		lg.Fatal("Connect to database", zap.Error(err))
	}
	defer pool.Close()

	f := order.NewFulfillment(repository.NewOrderRepository(pool))
	if err := run(ctx, os.Stdout, f, flag.Args()); err != nil {
		lg.Error("Command failed", zap.Error(err))
		pool.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, f *order.Fulfillment, args []string) error {
	if len(args) == 0 {
		return errUsage
	}

	switch cmd := args[0]; cmd {
	case "pending", "shipped":
		if len(args) != 1 {
			return errUsage
		}
		list := f.Pending
		if cmd == "shipped" {
			list = f.Shipped
		}
		orders, err := list(ctx)
		if err != nil {
			return errors.Wrapf(err, "list %s orders", cmd)
		}
		return printOrders(out, orders)

	case "show", "ship", "unship":
		if len(args) != 2 {
			return errUsage
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || id <= 0 {
			return errors.Errorf("invalid order id %q", args[1])
		}

		var o *order.Order
		switch cmd {
		case "show":
			o, err = f.Get(ctx, id)
		default:
			o, err = f.SetShipped(ctx, id, cmd == "ship")
		}
		if err != nil {
			return errors.Wrapf(err, "%s order %d", cmd, id)
		}
		return printOrder(out, o)

	default:
		return errUsage
	}
}

func printOrders(out io.Writer, orders []order.Order) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCUSTOMER\tEMAIL\tAMOUNT\tORDERED\tSHIPPED")
	for _, o := range orders {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.FullName, o.Email, o.AmountPaid.StringFixed(2),
			o.DateOrdered.Format(time.DateTime), shippedAt(o),
		)
	}
	return tw.Flush()
}

func printOrder(out io.Writer, o *order.Order) error {
	customer := "guest"
	if o.UserID != nil {
		customer = "user " + strconv.FormatInt(*o.UserID, 10)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "Order\t%d\n", o.ID)
	_, _ = fmt.Fprintf(tw, "Customer\t%s (%s)\n", o.FullName, customer)
	_, _ = fmt.Fprintf(tw, "Email\t%s\n", o.Email)
	_, _ = fmt.Fprintf(tw, "Amount\t%s\n", o.AmountPaid.StringFixed(2))
	_, _ = fmt.Fprintf(tw, "Ordered\t%s\n", o.DateOrdered.Format(time.DateTime))
	_, _ = fmt.Fprintf(tw, "Shipped\t%s\n", shippedAt(*o))
	if len(o.Items) > 0 {
		_, _ = fmt.Fprintln(tw, "\nBOOK\tQTY\tPRICE")
		for _, it := range o.Items {
			_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\n", it.BookID, it.Quantity, it.Price.StringFixed(2))
		}
	}
	return tw.Flush()
}

func shippedAt(o order.Order) string {
	switch {
	case !o.Shipped:
		return "no"
	case o.DateShipped == nil:
		return "yes"
	default:
		return o.DateShipped.Format(time.DateTime)
	}
}
