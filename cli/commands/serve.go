package commands

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/petal-labs/showroom/showroomtest"
)

func (a *App) newServeFakeCommand() *cobra.Command {
	var (
		addr       string
		apiKey     string
		tenantID   string
		chunkDelay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve-fake",
		Short: "Run an in-memory products API for local development",
		Long: `Serve a fake products API seeded with sample products. It implements
the catalog, discovery and chat routes, including the event stream.

Example:
  showroom serve-fake --addr 127.0.0.1:8787
  SHOWROOM_API_KEY=test-key showroom --base-url http://127.0.0.1:8787 --tenant test-tenant products list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fake := showroomtest.New(
				showroomtest.WithCredentials(apiKey, tenantID),
				showroomtest.WithChunkDelay(chunkDelay),
			)
			return a.serve(cmd.Context(), addr, fake)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8787", "listen address")
	cmd.Flags().StringVar(&apiKey, "api-key", showroomtest.DefaultAPIKey, "accepted API key")
	cmd.Flags().StringVar(&tenantID, "tenant-id", showroomtest.DefaultTenantID, "accepted tenant id")
	cmd.Flags().DurationVar(&chunkDelay, "chunk-delay", 50*time.Millisecond, "pause between streamed chunks")
	return cmd
}

// serve runs h on addr until ctx is done, then shuts down gracefully.
func (a *App) serve(ctx context.Context, addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return exitWithCode(ExitNetwork, err)
	}
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	fmt.Fprintf(a.stdout, "fake API listening on http://%s\n", ln.Addr())
	a.logger.Info("fake server started", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return exitWithCode(ExitNetwork, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitWithCode(ExitNetwork, err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return exitWithCode(ExitNetwork, err)
	}
	a.logger.Info("fake server stopped")
	return nil
}
