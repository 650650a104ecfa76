package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/vietddude/opswatch/internal/control"
	"github.com/vietddude/opswatch/internal/core/domain"
	"github.com/vietddude/opswatch/internal/infra/backend"
	"github.com/vietddude/opswatch/internal/monitoring/health"
)

var statusTimeout time.Duration

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Probe every backend endpoint once and print the health summary",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().DurationVar(&statusTimeout, "timeout", 15*time.Second, "overall probe timeout")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if code := checkStatus(cfg.Backend, cfg.Polling.StaleAfter, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

// checkStatus prints the one-shot report and returns the process exit code:
// 1 when the client cannot be built, 2 when the backend is unhealthy.
func checkStatus(cfg backend.Config, staleAfter time.Duration, out io.Writer) int {
	client, err := backend.NewClient(cfg)
	if err != nil {
		slog.Error("Failed to create backend client", "error", err)
		return 1
	}
	defer func() {
		_ = client.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	report := control.Probe(ctx, client, staleAfter)
	writeReport(out, report)

	if report.View.Overall != health.OverallHealthy {
		return 2
	}
	return 0
}

func writeReport(out io.Writer, r control.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CHECK\tSTATUS\tDETAIL")

	_, _ = fmt.Fprintf(w, "overall\t%s\tversion=%s env=%s\n", r.View.Overall, dash(r.View.Version), dash(r.View.Environment))
	_, _ = fmt.Fprintf(w, "api\t%s\t\n", r.View.API)
	_, _ = fmt.Fprintf(w, "channel\t%s\tinstance=%s\n", r.View.Channel, dash(r.View.ChannelInstance))

	if c := r.Composite; c != nil {
		_, _ = fmt.Fprintf(w, "composite\t%s\terror_rate=%.2f/h confirmation=%.1f%% inbound=%.2f/min\n",
			c.Status, c.Rates.ErrorRate, c.Rates.ConfirmationRate, c.Rates.InboundRate)
	} else {
		_, _ = fmt.Fprintln(w, "composite\tunknown\t")
	}

	if p := r.Pacing; p != nil {
		state := "ok"
		if p.Saturated() {
			state = "saturated"
		}
		_, _ = fmt.Fprintf(w, "pacing\t%s\t%d/%d per minute\n", state, p.Sent, p.Limit)
	} else {
		_, _ = fmt.Fprintln(w, "pacing\tunknown\t")
	}

	names := make([]string, 0, len(r.Errors))
	for name := range r.Errors {
		names = append(names, string(name))
	}
	sort.Strings(names)
	for _, name := range names {
		_, _ = fmt.Fprintf(w, "error\t%s\t%s\n", name, r.Errors[domain.EndpointName(name)])
	}
	_ = w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
