package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/canteen-orders/constants"
	"github.com/joseph-ayodele/canteen-orders/internal/app"
	"github.com/joseph-ayodele/canteen-orders/internal/entity"
	"github.com/joseph-ayodele/canteen-orders/internal/orders"
	"github.com/joseph-ayodele/canteen-orders/internal/repository"
)

// orderView is the CLI rendering of an order; images are reported, not dumped.
type orderView struct {
	ID             string            `json:"id"`
	OrderNumber    string            `json:"order_number"`
	DateTime       string            `json:"date_time"`
	Price          float64           `json:"price"`
	RestaurantName string            `json:"restaurant_name,omitempty"`
	PaymentMethod  string            `json:"payment_method,omitempty"`
	Items          []entity.LineItem `json:"items"`
	Status         string            `json:"status"`
	HasReceipt     bool              `json:"has_receipt"`
	HasProof       bool              `json:"has_proof"`
}

func viewOf(o *entity.Order) orderView {
	items := o.Items
	if items == nil {
		items = []entity.LineItem{}
	}
	return orderView{
		ID:             o.ID.String(),
		OrderNumber:    o.OrderNumber,
		DateTime:       o.DateTime.Format("2006-01-02 15:04"),
		Price:          o.Price,
		RestaurantName: o.RestaurantName,
		PaymentMethod:  o.PaymentMethod,
		Items:          items,
		Status:         o.Status.Label(),
		HasReceipt:     len(o.ReceiptImage) > 0,
		HasProof:       o.HasProof(),
	}
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid order id %q: %w", raw, err)
	}
	return id, nil
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <image>",
		Short: "Scan a receipt image and store it as a pending order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app.App) error {
				o, err := a.Orders.Scan(cmd.Context(), img)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), viewOf(o))
			})
		},
	}
}

func newExtractCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <ocr.txt>",
		Short: "Extract an order draft from already recognized text (nothing is stored)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app.App) error {
				d, err := a.Orders.ExtractText(cmd.Context(), string(text))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), d)
			})
		},
	}
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var (
		entry     orders.ManualEntry
		dateStr   string
		items     []string
		imagePath string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Enter an order by hand",
		Example: `  canteen add --number POS-080425-12 --price 45000 --item "Es Teh=5000" --item "Nasi Goreng=40000"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dateStr != "" {
				t, err := time.ParseInLocation("2006-01-02 15:04", dateStr, time.Local)
				if err != nil {
					return fmt.Errorf("--date must be \"YYYY-MM-DD HH:MM\": %w", err)
				}
				entry.DateTime = t
			}
			for _, raw := range items {
				it, err := parseItem(raw)
				if err != nil {
					return err
				}
				entry.Items = append(entry.Items, it)
			}
			if imagePath != "" {
				img, err := os.ReadFile(imagePath)
				if err != nil {
					return err
				}
				entry.ReceiptImage = img
			}
			return opts.withApp(cmd, func(a *app.App) error {
				o, err := a.Orders.CreateManual(cmd.Context(), entry)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), viewOf(o))
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&entry.OrderNumber, "number", "", "order number, e.g. POS-080425-12")
	f.Float64Var(&entry.Price, "price", 0, "total price")
	f.StringVar(&entry.RestaurantName, "restaurant", "", "restaurant name")
	f.StringVar(&entry.PaymentMethod, "payment", "", "payment method")
	f.StringVar(&dateStr, "date", "", "order time \"YYYY-MM-DD HH:MM\" (default now)")
	f.StringArrayVar(&items, "item", nil, "line item as name or name=price (repeatable)")
	f.StringVar(&imagePath, "receipt", "", "receipt image to keep with the order")
	return cmd
}

// parseItem reads "name" or "name=price".
func parseItem(raw string) (entity.LineItem, error) {
	name, price, found := strings.Cut(raw, "=")
	it := entity.LineItem{Name: strings.TrimSpace(name)}
	if found {
		p, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
		if err != nil {
			return it, fmt.Errorf("item %q: bad price: %w", raw, err)
		}
		it.Price = p
	}
	return it, nil
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		statusStr string
		limit     int
		sample    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, highest order number first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter repository.ListFilter
			if statusStr != "" {
				st, ok := constants.ParseVerificationStatus(statusStr)
				if !ok {
					return fmt.Errorf("unknown status %q (pending, verified, mismatch)", statusStr)
				}
				filter.Status = st
			}
			filter.Limit = limit
			if sample {
				return printJSON(cmd.OutOrStdout(), views(filterSamples(orders.SampleOrders(time.Now()), filter)))
			}
			return opts.withApp(cmd, func(a *app.App) error {
				list, err := a.Orders.List(cmd.Context(), filter)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), views(list))
			})
		},
	}
	cmd.Flags().StringVar(&statusStr, "status", "", "only orders in this status")
	cmd.Flags().IntVar(&limit, "limit", 0, "at most this many orders (0 = all)")
	cmd.Flags().BoolVar(&sample, "sample", false, "list built-in sample orders instead of the store")
	return cmd
}

// filterSamples applies filter to the sample set in list order.
func filterSamples(in []*entity.Order, filter repository.ListFilter) []*entity.Order {
	out := make([]*entity.Order, 0, len(in))
	for i := len(in) - 1; i >= 0; i-- {
		if filter.Status != "" && in[i].Status != filter.Status {
			continue
		}
		out = append(out, in[i])
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

func views(list []*entity.Order) []orderView {
	out := make([]orderView, 0, len(list))
	for _, o := range list {
		out = append(out, viewOf(o))
	}
	return out
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app.App) error {
				o, err := a.Orders.Get(cmd.Context(), id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), viewOf(o))
			})
		},
	}
}

// transitionCmd builds verify and mismatch, which differ only in the service call.
func transitionCmd(opts *rootOptions, use, short string, call func(a *app.App, cmd *cobra.Command, id uuid.UUID) (*entity.Order, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app.App) error {
				o, err := call(a, cmd, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), viewOf(o))
			})
		},
	}
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	return transitionCmd(opts, "verify", "Confirm a pending order matches its receipt",
		func(a *app.App, cmd *cobra.Command, id uuid.UUID) (*entity.Order, error) {
			return a.Orders.Verify(cmd.Context(), id)
		})
}

func newMismatchCmd(opts *rootOptions) *cobra.Command {
	return transitionCmd(opts, "mismatch", "Flag a pending order as not matching its receipt",
		func(a *app.App, cmd *cobra.Command, id uuid.UUID) (*entity.Order, error) {
			return a.Orders.MarkMismatch(cmd.Context(), id)
		})
}

func newRescanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rescan <id> <image>",
		Short: "Re-extract a mismatched order from a new image (back to pending)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			img, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app.App) error {
				o, err := a.Orders.Rescan(cmd.Context(), id, img)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), viewOf(o))
			})
		},
	}
}

func newProofCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "proof <id> <image>",
		Short: "Attach a proof-of-payment image to an order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			img, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app.App) error {
				if err := a.Orders.AttachProof(cmd.Context(), id, img); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "proof attached")
				return err
			})
		},
	}
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withApp(cmd, func(a *app.App) error {
				if err := a.Orders.Delete(cmd.Context(), id); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "deleted")
				return err
			})
		},
	}
}
