package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tcgsync_api/internal/tcg/business/models"
	"tcgsync_api/internal/tcg/business/models/dto/request"
	"tcgsync_api/internal/tcg/business/models/dto/response"
)

var addr string

func main() {
	rootCmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Control the trading-card catalog sync service",
	}

	rootCmd.PersistentFlags().StringVar(&addr, "addr", envOr("SYNCCTL_ADDR", "http://localhost:8080"), "Sync service address")

	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(cancelCmd())
	rootCmd.AddCommand(signalsCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(resetCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Trigger synchronization runs",
	}

	var (
		category   string
		groupIDs   []string
		nameFilter string
		page       int
		pageSize   int
		dryRun     bool
		background bool
	)

	run := func(op string) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			if category == "" {
				return fmt.Errorf("--category is required")
			}
			req := request.SyncRequest{
				CategoryID: category,
				GroupIDs:   groupIDs,
				NameFilter: nameFilter,
				Page:       page,
				PageSize:   pageSize,
				DryRun:     dryRun,
				Background: background,
			}
			var resp response.SyncResponse
			if err := postJSON("/api/sync/"+op, req, &resp); err != nil {
				return err
			}
			if resp.Error != "" {
				return fmt.Errorf("%s sync: %s", op, resp.Error)
			}
			if resp.Started {
				fmt.Printf("Started %s sync: operation %s\n", op, resp.OperationID)
				fmt.Println("Observe progress with: syncctl status")
				return nil
			}
			printSummary(op, resp.Summary)
			if !resp.Success {
				return fmt.Errorf("%s sync finished with errors", op)
			}
			return nil
		}
	}

	for _, op := range []string{models.OpGroups, models.OpProducts, models.OpPrices} {
		sub := &cobra.Command{
			Use:   op,
			Short: "Sync " + op,
			RunE:  run(op),
		}
		cmd.AddCommand(sub)
	}

	cmd.PersistentFlags().StringVar(&category, "category", "", "Category ID (required)")
	cmd.PersistentFlags().StringSliceVar(&groupIDs, "groups", nil, "Group IDs to sync (default: all stored groups)")
	cmd.PersistentFlags().StringVar(&nameFilter, "filter", "", "Group name fragment filter")
	cmd.PersistentFlags().IntVar(&page, "page", 0, "Start page, 1-based (default: first)")
	cmd.PersistentFlags().IntVar(&pageSize, "page-size", 0, "Page size override for this run")
	cmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Fetch and count without committing")
	cmd.PersistentFlags().BoolVar(&background, "background", false, "Detach the run and return its operation id")

	return cmd
}

func cancelCmd() *cobra.Command {
	var (
		opID      string
		createdBy string
	)

	cmd := &cobra.Command{
		Use:   "cancel <groups|products|prices|*>",
		Short: "Raise a cooperative stop signal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.CancelRequest{
				OpType:    args[0],
				OpID:      opID,
				CreatedBy: createdBy,
			}
			var resp response.SyncResponse
			if err := postJSON("/api/sync/cancel", req, &resp); err != nil {
				return err
			}
			if resp.Error != "" {
				return fmt.Errorf("cancel: %s", resp.Error)
			}
			fmt.Println("Cancel signal raised")
			return nil
		},
	}

	cmd.Flags().StringVar(&opID, "op-id", "", "Operation id to cancel (default: every run of the type)")
	cmd.Flags().StringVar(&createdBy, "by", "syncctl", "Signal author recorded in the database")
	return cmd
}

func statusCmd() *cobra.Command {
	var (
		entityType string
		entityID   string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-target sync states",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if entityType != "" {
				query.Set("entityType", entityType)
			}
			if entityID != "" {
				query.Set("entityId", entityID)
			}
			var resp response.StatusResponse
			if err := getJSON("/api/sync/status?"+query.Encode(), &resp); err != nil {
				return err
			}

			if format == "json" {
				data, _ := json.MarshalIndent(resp.Statuses, "", "  ")
				fmt.Println(string(data))
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tID\tSTATE\tSYNCED\tEXPECTED\tUPDATED\tSTUCK\tERROR")
			for _, s := range resp.Statuses {
				stuck := ""
				if s.Stuck {
					stuck = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					s.EntityType, s.EntityID, s.State, s.SyncedItems, s.ExpectedItems,
					s.UpdatedAt.Format("2006-01-02 15:04:05"), stuck, s.LastError)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&entityType, "type", "", "Filter by operation type (groups|products|prices)")
	cmd.Flags().StringVar(&entityID, "id", "", "Single target id")
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table|json)")
	return cmd
}

func signalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signals",
		Short: "List stored control signals",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp response.SignalsResponse
			if err := getJSON("/api/sync/signals", &resp); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tOP\tCANCEL\tBY\tCREATED")
			for _, s := range resp.Signals {
				cancel := ""
				if s.Cancel {
					cancel = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.OpType, s.OpID, cancel, s.CreatedBy,
					s.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			w.Flush()
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "reset <type> <id>",
		Short: "Reset a stuck syncing row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := request.ResetRequest{
				EntityType: args[0],
				EntityID:   args[1],
				To:         to,
			}
			var resp response.SyncResponse
			if err := postJSON("/api/sync/status/reset", req, &resp); err != nil {
				return err
			}
			if resp.Error != "" {
				return fmt.Errorf("reset: %s", resp.Error)
			}
			fmt.Printf("Reset %s/%s to %s\n", args[0], args[1], firstNonEmpty(to, "error"))
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "State to reset into, error or idle (default: error)")
	return cmd
}

var httpClient = &http.Client{Timeout: 10 * time.Minute}

func postJSON(path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(addr+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(path string, out interface{}) error {
	resp, err := httpClient.Get(addr + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(data))
		}
		return err
	}
	return nil
}

func printSummary(op string, summary *models.SyncResult) {
	if summary == nil {
		fmt.Printf("%s sync: no summary returned\n", op)
		return
	}
	fmt.Printf("%s sync %s: fetched=%d upserted=%d skipped=%d errors=%d in %dms (%.1f rec/s)\n",
		op, summary.OperationID, summary.Fetched, summary.Upserted, summary.Skipped,
		summary.Errors, summary.ElapsedMs, summary.RatePerSec)

	if len(summary.PerTarget) == 0 {
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tFETCHED\tUPSERTED\tSKIPPED\tREASON\tERROR")
	for _, t := range summary.PerTarget {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			t.EntityID, t.Name, t.State, t.Fetched, t.Upserted, t.Skipped, t.StopReason, t.Error)
	}
	w.Flush()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
