package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/rulinstat/internal/dashboard"
	"github.com/ppiankov/rulinstat/internal/model"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only dashboard over an output directory",
	Long: `Serve renders one page over the artifacts written by analyze:
- Chart documents and the map embedded as frames
- CSV tables rendered as HTML tables
- A placeholder for every artifact that has not been generated yet

The dashboard never writes to the output directory.

Example:
  rulinstat serve
  rulinstat serve --addr :8080 --dir ./all-chapters`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := model.DefaultConfig()

	serveCmd.Flags().String("addr", defaults.Dashboard.Addr, "listen address")
	serveCmd.Flags().String("dir", defaults.Dashboard.Dir, "output directory to display")
	serveCmd.Flags().String("title", defaults.Dashboard.Title, "page title")

	bindFlag(serveCmd, "addr", "dashboard.addr")
	bindFlag(serveCmd, "dir", "dashboard.dir")
	bindFlag(serveCmd, "title", "dashboard.title")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := os.Stat(cfg.Dashboard.Dir); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  %s not found; run 'rulinstat analyze' first\n", cfg.Dashboard.Dir)
	}

	fmt.Fprintf(os.Stderr, "✓ Dashboard for %s at http://%s\n", cfg.Dashboard.Dir, displayAddr(cfg.Dashboard.Addr))

	server := dashboard.NewServer(cfg.Dashboard.Dir, cfg.Dashboard.Title, logger)
	if err := server.ListenAndServe(ctx, cfg.Dashboard.Addr); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

// displayAddr turns a bind address like ":8501" into a browsable host:port
func displayAddr(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
