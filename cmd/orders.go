package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	ordersx "github.com/tanpawarit/chative-commerce/agent/orders"
)

var (
	ordersEmail string
	ordersLimit int
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Inspect and update placed orders",
}

var ordersGetCmd = &cobra.Command{
	Use:   "get ORDER_ID",
	Short: "Show one order with its items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openRepository()
		if err != nil {
			return err
		}
		defer closeDB()

		order, err := repo.GetOrder(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printOrder(cmd.OutOrStdout(), order)
		return nil
	},
}

var ordersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent orders, or one customer's orders with --email",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openRepository()
		if err != nil {
			return err
		}
		defer closeDB()

		var list []*ordersx.Order
		if ordersEmail != "" {
			list, err = repo.ListOrdersByEmail(cmd.Context(), ordersEmail)
		} else {
			list, err = repo.ListRecent(cmd.Context(), ordersLimit)
		}
		if err != nil {
			return err
		}
		printOrderTable(cmd.OutOrStdout(), list)
		return nil
	},
}

var ordersStatusCmd = &cobra.Command{
	Use:   "status ORDER_ID STATUS",
	Short: "Set an order's status (pending, confirmed, shipped, delivered, cancelled)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := ordersx.ParseStatus(args[1])
		if err != nil {
			return usageError("%v", err)
		}
		repo, closeDB, err := openRepository()
		if err != nil {
			return err
		}
		defer closeDB()

		if err := repo.UpdateOrderStatus(cmd.Context(), args[0], status); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Order %s is now %s\n", args[0], status)
		return nil
	},
}

func printOrder(out io.Writer, o *ordersx.Order) {
	fmt.Fprintf(out, "Order %s (%s)\n", o.OrderID, o.Status)
	fmt.Fprintf(out, "Customer: %s <%s>\n", o.CustomerName, o.CustomerEmail)
	fmt.Fprintf(out, "Ship to:  %s\n", o.ShippingAddress)
	fmt.Fprintf(out, "Placed:   %s\n\n", o.CreatedAt.Format("2006-01-02 15:04"))

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tNAME\tQTY\tUNIT\tSUBTOTAL")
	for _, it := range o.Items {
		fmt.Fprintf(w, "%s\t%s\t%d\t$%.2f\t$%.2f\n", it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.Subtotal)
	}
	_ = w.Flush()
	fmt.Fprintf(out, "\nTotal: $%.2f\n", o.TotalAmount)
}

func printOrderTable(out io.Writer, list []*ordersx.Order) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No orders found.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ORDER\tSTATUS\tCUSTOMER\tITEMS\tTOTAL\tPLACED")
	for _, o := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t$%.2f\t%s\n",
			o.OrderID, o.Status, o.CustomerEmail, len(o.Items), o.TotalAmount, o.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

func init() {
	ordersListCmd.Flags().StringVar(&ordersEmail, "email", "", "only orders for this customer email")
	ordersListCmd.Flags().IntVar(&ordersLimit, "limit", 20, "maximum number of orders")
	ordersCmd.AddCommand(ordersGetCmd, ordersListCmd, ordersStatusCmd)
	rootCmd.AddCommand(ordersCmd)
}
