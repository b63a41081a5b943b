// Command racectl is the operator CLI for a running raced instance.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	apiURL  string
	timeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:          "racectl",
		Short:        "Race wagering CLI",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&apiURL, "api", envOr("RACED_API_URL", "http://localhost:8080"), "raced API base URL")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")

	root.AddCommand(racesCmd())
	root.AddCommand(previewCmd())
	root.AddCommand(wagersCmd())
	root.AddCommand(settlementCmd())
	root.AddCommand(winningsCmd())
	root.AddCommand(claimCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

type raceView struct {
	RaceID           string  `json:"race_id"`
	StartTs          int64   `json:"start_ts"`
	LockTs           int64   `json:"lock_ts"`
	SettleTs         int64   `json:"settle_ts"`
	Phase            string  `json:"phase"`
	TimeRemainingSec int64   `json:"time_remaining_sec"`
	Progress         float64 `json:"progress"`
	FeeBps           int64   `json:"fee_bps"`
	TotalPoolMicros  int64   `json:"total_pool_micros"`
	AssetPoolMicros  []int64 `json:"asset_pool_micros"`
	ParticipantCount int64   `json:"participant_count"`
	Assets           []struct {
		Symbol       string   `json:"symbol"`
		Mint         string   `json:"mint"`
		StartPrice   float64  `json:"start_price"`
		CurrentPrice float64  `json:"current_price"`
		EndPrice     *float64 `json:"end_price"`
	} `json:"assets"`
}

type wagerView struct {
	RaceID       string `json:"race_id"`
	Player       string `json:"player"`
	AssetIndex   int    `json:"asset_index"`
	AmountMicros int64  `json:"amount_micros"`
	Claimed      bool   `json:"claimed"`
	CreatedAt    int64  `json:"created_at"`
}

func racesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "races",
		Short: "List active races",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var races []raceView
			if err := getJSON("/v1/races", nil, &races); err != nil {
				return err
			}
			if len(races) == 0 {
				fmt.Println("no active races")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Race", "Phase", "Remaining", "Assets", "Pool", "Players", "Fee")
			for _, r := range races {
				table.Append(
					short(r.RaceID),
					r.Phase,
					fmt.Sprintf("%ds", r.TimeRemainingSec),
					assetSymbols(r),
					formatMicros(r.TotalPoolMicros),
					fmt.Sprintf("%d", r.ParticipantCount),
					fmt.Sprintf("%.2f%%", float64(r.FeeBps)/100),
				)
			}
			table.Render()
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <race>",
		Short: "Show one race with per-asset detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r raceView
			if err := getJSON("/v1/races/"+url.PathEscape(args[0]), nil, &r); err != nil {
				return err
			}

			fmt.Printf("race %s  phase=%s  remaining=%ds  progress=%.0f%%\n",
				r.RaceID, r.Phase, r.TimeRemainingSec, r.Progress*100)
			fmt.Printf("pool %s  players=%d  fee=%.2f%%\n\n",
				formatMicros(r.TotalPoolMicros), r.ParticipantCount, float64(r.FeeBps)/100)

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("#", "Symbol", "Start", "Current", "End", "Change", "Pool")
			for i, a := range r.Assets {
				end := "-"
				if a.EndPrice != nil {
					end = fmt.Sprintf("%.6g", *a.EndPrice)
				}
				change := "-"
				if a.StartPrice > 0 {
					change = fmt.Sprintf("%+.2f%%", (a.CurrentPrice-a.StartPrice)/a.StartPrice*100)
				}
				pool := int64(0)
				if i < len(r.AssetPoolMicros) {
					pool = r.AssetPoolMicros[i]
				}
				table.Append(
					fmt.Sprintf("%d", i),
					a.Symbol,
					fmt.Sprintf("%.6g", a.StartPrice),
					fmt.Sprintf("%.6g", a.CurrentPrice),
					end,
					change,
					formatMicros(pool),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.AddCommand(show)
	return cmd
}

func previewCmd() *cobra.Command {
	var player string
	cmd := &cobra.Command{
		Use:   "preview <race> <asset-index> <amount-micros>",
		Short: "Preview the payout for a hypothetical stake",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"asset": {args[1]}, "amount": {args[2]}}
			if player != "" {
				q.Set("player", player)
			}

			var p struct {
				TotalPayoutMicros int64   `json:"total_payout_micros"`
				ProfitMicros      int64   `json:"profit_micros"`
				YourSharePct      float64 `json:"your_share_pct"`
				NetPoolMicros     int64   `json:"net_pool_micros"`
				WinnerPoolMicros  int64   `json:"winner_pool_micros"`
				Note              string  `json:"note"`
			}
			if err := getJSON("/v1/races/"+url.PathEscape(args[0])+"/preview", q, &p); err != nil {
				return err
			}

			if p.Note != "" && p.TotalPayoutMicros == 0 {
				fmt.Printf("no payout: %s\n", p.Note)
				return nil
			}
			fmt.Printf("payout  %s\n", formatMicros(p.TotalPayoutMicros))
			fmt.Printf("profit  %s\n", formatMicros(p.ProfitMicros))
			fmt.Printf("share   %.4f%% of winner pool %s\n", p.YourSharePct, formatMicros(p.WinnerPoolMicros))
			fmt.Printf("net     %s after fees\n", formatMicros(p.NetPoolMicros))
			return nil
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "include this player's existing stake")
	return cmd
}

func wagersCmd() *cobra.Command {
	var player string
	cmd := &cobra.Command{
		Use:   "wagers <race>",
		Short: "List the wagers of a race, or of a player with --player",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			switch {
			case player != "":
				path = "/v1/players/" + url.PathEscape(player) + "/wagers"
			case len(args) == 1:
				path = "/v1/races/" + url.PathEscape(args[0]) + "/wagers"
			default:
				return fmt.Errorf("a race argument or --player is required")
			}

			var wagers []wagerView
			if err := getJSON(path, nil, &wagers); err != nil {
				return err
			}
			if len(wagers) == 0 {
				fmt.Println("no wagers")
				return nil
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.Header("Race", "Player", "Asset", "Amount", "Claimed", "Placed")
			for _, w := range wagers {
				table.Append(
					short(w.RaceID),
					short(w.Player),
					fmt.Sprintf("%d", w.AssetIndex),
					formatMicros(w.AmountMicros),
					fmt.Sprintf("%t", w.Claimed),
					time.UnixMilli(w.CreatedAt).UTC().Format("01-02 15:04:05"),
				)
			}
			table.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&player, "player", "", "list this player's wagers across races")
	return cmd
}

func settlementCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settlement <race>",
		Short: "Show the settlement of a finished race",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var s struct {
				PerformancePct      []float64 `json:"performance_pct"`
				WinningAssetIndices []int     `json:"winning_asset_indices"`
				InvalidAssets       []int     `json:"invalid_assets"`
				FeeMicros           int64     `json:"fee_micros"`
				NetPoolMicros       int64     `json:"net_pool_micros"`
				WinningPoolMicros   int64     `json:"winning_pool_micros"`
				Intensity           string    `json:"intensity"`
			}
			if err := getJSON("/v1/races/"+url.PathEscape(args[0])+"/settlement", nil, &s); err != nil {
				return err
			}

			winners := make([]string, len(s.WinningAssetIndices))
			for i, idx := range s.WinningAssetIndices {
				winners[i] = fmt.Sprintf("%d (%+.2f%%)", idx, s.PerformancePct[idx])
			}
			fmt.Printf("winners   %s\n", strings.Join(winners, ", "))
			fmt.Printf("fee       %s\n", formatMicros(s.FeeMicros))
			fmt.Printf("net pool  %s over winning pool %s\n", formatMicros(s.NetPoolMicros), formatMicros(s.WinningPoolMicros))
			fmt.Printf("intensity %s\n", s.Intensity)
			if len(s.InvalidAssets) > 0 {
				fmt.Printf("invalid assets excluded: %v\n", s.InvalidAssets)
			}
			return nil
		},
	}
}

func winningsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "winnings <race> <player>",
		Short: "Show what a player's wager pays for a settled race",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var w struct {
				AmountMicros int64 `json:"amount_micros"`
			}
			q := url.Values{"player": {args[1]}}
			if err := getJSON("/v1/races/"+url.PathEscape(args[0])+"/winnings", q, &w); err != nil {
				return err
			}
			if w.AmountMicros == 0 {
				fmt.Println("nothing to claim")
				return nil
			}
			fmt.Printf("claimable %s\n", formatMicros(w.AmountMicros))
			return nil
		},
	}
}

func claimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <race> <player>",
		Short: "Resolve a player's winnings through the wallet service",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"player": args[1]}
			var out struct {
				Status       string `json:"status"`
				Signature    string `json:"signature"`
				AmountMicros int64  `json:"amount_micros"`
				Kind         string `json:"kind"`
				Error        string `json:"error"`
			}
			if err := postJSON("/v1/races/"+url.PathEscape(args[0])+"/claims", body, &out); err != nil {
				return err
			}

			if out.Status == "claimed" {
				fmt.Printf("claimed %s", formatMicros(out.AmountMicros))
				if out.Signature != "" {
					fmt.Printf("  tx=%s", out.Signature)
				}
				fmt.Println()
				return nil
			}
			fmt.Printf("claim failed: %s", out.Kind)
			if out.Error != "" {
				fmt.Printf(" (%s)", out.Error)
			}
			fmt.Println()
			return nil
		},
	}
}

func getJSON(path string, q url.Values, out interface{}) error {
	u := apiURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func postJSON(path string, body, out interface{}) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Post(apiURL+path, "application/json", strings.NewReader(string(buf)))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("request failed: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// formatMicros renders integer micro-units as a display amount.
func formatMicros(micros int64) string {
	return fmt.Sprintf("%.6f", float64(micros)/1e6)
}

func assetSymbols(r raceView) string {
	syms := make([]string, len(r.Assets))
	for i, a := range r.Assets {
		syms[i] = a.Symbol
	}
	return strings.Join(syms, "/")
}

func short(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:6] + ".." + s[len(s)-4:]
}
