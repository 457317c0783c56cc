// Command tradectl is the operator CLI for the momentum trading engine
// (spec §6.5): status/positions/orders/quote read commands and
// buy/sell/close manual-trading commands, all talking to the running
// engine's admin API rather than to the broker directly. Flag and error
// conventions follow the corpus's cobra-based CLI idiom
// (NimbleMarkets-dbn-go/cmd/dbn-go-hist).
package main

import (
	_ "time/tzdata"

	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var (
	live     bool
	totpCode string

	dollars float64
	shares  float64
	tpPct   float64
	slPct   float64

	limit int
)

func requireNoError(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(1)
	}
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&live, "live", false, "send live=true on order requests (requires --totp); the broker account is the one the engine was started with")
	rootCmd.PersistentFlags().StringVar(&totpCode, "totp", "", "TOTP code, required with --live on order-submitting commands")

	buyCmd.Flags().Float64Var(&dollars, "dollars", 0, "dollar amount to size the buy from")
	buyCmd.Flags().Float64Var(&shares, "shares", 0, "explicit share count (overrides --dollars)")
	buyCmd.Flags().Float64Var(&tpPct, "tp", 0, "take-profit percent, recorded but not auto-enforced for manual trades")
	buyCmd.Flags().Float64Var(&slPct, "sl", 0, "stop-loss percent, recorded but not auto-enforced for manual trades")
	rootCmd.AddCommand(buyCmd)

	sellCmd.Flags().Float64Var(&shares, "shares", 0, "share count to sell")
	rootCmd.AddCommand(sellCmd)

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(positionsCmd)
	rootCmd.AddCommand(ordersCmd)
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(closeCmd)
	rootCmd.AddCommand(closeAllCmd)
	rootCmd.AddCommand(cancelAllCmd)

	tradesCmd.Flags().IntVar(&limit, "limit", 20, "maximum number of trades to show")
	rootCmd.AddCommand(tradesCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tradectl",
	Short: "tradectl drives the momentum trading engine's admin API",
}

var buyCmd = &cobra.Command{
	Use:   "buy <ticker>",
	Short: "submit a manual limit buy at the current quote",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newAdminClient()
		var out map[string]interface{}
		body := map[string]interface{}{
			"ticker": strings.ToUpper(args[0]), "dollars": dollars, "shares": shares,
			"tp_pct": tpPct, "sl_pct": slPct,
		}
		err := client.postJSON(client.liveQuery("/buy", live), body, requiredTOTP(), &out)
		requireNoError(err)
		printKV(out)
	},
}

var sellCmd = &cobra.Command{
	Use:   "sell <ticker>",
	Short: "submit a manual limit sell at the current quote",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newAdminClient()
		var out map[string]interface{}
		body := map[string]interface{}{"ticker": strings.ToUpper(args[0]), "shares": shares}
		err := client.postJSON(client.liveQuery("/sell", live), body, requiredTOTP(), &out)
		requireNoError(err)
		printKV(out)
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <ticker>",
	Short: "sell the full open position for a ticker at the current quote",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newAdminClient()
		var out map[string]interface{}
		err := client.postJSON(client.liveQuery("/close/"+strings.ToUpper(args[0]), live), nil, requiredTOTP(), &out)
		requireNoError(err)
		printKV(out)
	},
}

var closeAllCmd = &cobra.Command{
	Use:   "close-all",
	Short: "exit every active trade across every strategy",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := newAdminClient()
		var out map[string]interface{}
		err := client.postJSON(client.liveQuery("/close-all", live), nil, requiredTOTP(), &out)
		requireNoError(err)
		printKV(out)
	},
}

var cancelAllCmd = &cobra.Command{
	Use:   "cancel-all",
	Short: "cancel every open broker order",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := newAdminClient()
		var out map[string]interface{}
		err := client.postJSON(client.liveQuery("/cancel-all", live), nil, requiredTOTP(), &out)
		requireNoError(err)
		printKV(out)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "show every loaded strategy's live counts",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := newAdminClient()
		var out struct {
			Strategies []struct {
				ID            string   `json:"id"`
				Name          string   `json:"name"`
				Priority      int      `json:"priority"`
				Enabled       bool     `json:"enabled"`
				PendingCount  int      `json:"pending_count"`
				ActiveCount   int      `json:"active_count"`
				ActiveTickers []string `json:"active_tickers"`
			} `json:"strategies"`
			Paper  bool   `json:"paper"`
			Broker string `json:"broker"`
		}
		requireNoError(client.getJSON("/status", &out))

		fmt.Printf("broker=%s mode=%s\n", out.Broker, modeLabel(out.Paper))
		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "PRIORITY\tNAME\tENABLED\tPENDING\tACTIVE\tTICKERS")
		for _, st := range out.Strategies {
			fmt.Fprintf(w, "%d\t%s\t%v\t%d\t%d\t%s\n",
				st.Priority, st.Name, st.Enabled, st.PendingCount, st.ActiveCount, strings.Join(st.ActiveTickers, ","))
		}
		w.Flush()
	},
}

var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "list open broker positions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := newAdminClient()
		var out struct {
			Positions []struct {
				Ticker          string  `json:"Ticker"`
				Shares          float64 `json:"Shares"`
				AvgEntryPrice   float64 `json:"AvgEntryPrice"`
				UnrealizedPL    float64 `json:"UnrealizedPL"`
				UnrealizedPLPct float64 `json:"UnrealizedPLPct"`
			} `json:"positions"`
		}
		requireNoError(client.getJSON("/positions", &out))

		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "TICKER\tSHARES\tAVG ENTRY\tUNREALIZED P&L\tP&L %")
		for _, p := range out.Positions {
			fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\t%.2f%%\n", p.Ticker, p.Shares, p.AvgEntryPrice, p.UnrealizedPL, p.UnrealizedPLPct)
		}
		w.Flush()
	},
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "list open broker orders",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := newAdminClient()
		var out struct {
			Orders []struct {
				OrderID string  `json:"OrderID"`
				Ticker  string  `json:"Ticker"`
				Side    string  `json:"Side"`
				Shares  float64 `json:"Shares"`
				Status  string  `json:"Status"`
			} `json:"orders"`
		}
		requireNoError(client.getJSON("/orders", &out))

		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "ORDER ID\tTICKER\tSIDE\tSHARES\tSTATUS")
		for _, o := range out.Orders {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", o.OrderID, o.Ticker, o.Side, o.Shares, o.Status)
		}
		w.Flush()
	},
}

var tradesCmd = &cobra.Command{
	Use:   "trades",
	Short: "show recent completed trades",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := newAdminClient()
		var out struct {
			Trades []struct {
				TradeID    string  `json:"TradeID"`
				Ticker     string  `json:"Ticker"`
				StrategyID string  `json:"StrategyID"`
				ExitReason string  `json:"ExitReason"`
				ReturnPct  float64 `json:"ReturnPct"`
				PnL        float64 `json:"PnL"`
			} `json:"trades"`
		}
		requireNoError(client.getJSON("/trades?limit="+strconv.Itoa(limit), &out))

		w := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "TICKER\tSTRATEGY\tEXIT REASON\tRETURN %\tP&L")
		for _, t := range out.Trades {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f%%\t%.2f\n", t.Ticker, t.StrategyID, t.ExitReason, t.ReturnPct, t.PnL)
		}
		w.Flush()
	},
}

var quoteCmd = &cobra.Command{
	Use:   "quote <ticker>",
	Short: "print the broker's current quote for a ticker",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := newAdminClient()
		var out struct {
			Ticker string  `json:"Ticker"`
			Bid    float64 `json:"Bid"`
			Ask    float64 `json:"Ask"`
			Last   float64 `json:"Last"`
			Volume float64 `json:"Volume"`
		}
		requireNoError(client.getJSON("/quote/"+strings.ToUpper(args[0]), &out))
		fmt.Printf("%s  bid=%.2f ask=%.2f last=%.2f volume=%.0f\n", out.Ticker, out.Bid, out.Ask, out.Last, out.Volume)
	},
}

func modeLabel(paper bool) string {
	if paper {
		return "paper"
	}
	return "live"
}

func requiredTOTP() string {
	if !live {
		return ""
	}
	return totpCode
}

func printKV(m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for _, k := range keys {
		fmt.Printf("%s: %v\n", k, m[k])
	}
}
