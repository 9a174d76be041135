package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
)

const healthcheckTimeout = 2 * time.Second

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check if the server is healthy",
	Long:  "Performs an HTTP request to the /up endpoint to verify the server and, when configured, the database are operational",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(0)
		if err != nil {
			return err
		}
		return healthcheck(fmt.Sprintf("http://localhost:%s/up", cfg.Port))
	},
}

func healthcheck(url string) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	client := &fasthttp.Client{}
	if err := client.DoTimeout(req, resp, healthcheckTimeout); err != nil {
		fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
		return fmt.Errorf("healthcheck failed: %w", err)
	}

	if status := resp.StatusCode(); status != fasthttp.StatusOK {
		fmt.Fprintf(os.Stderr, "Healthcheck failed: status %d\n", status)
		return fmt.Errorf("healthcheck failed: status %d", status)
	}
	return nil
}

func init() {
	RootCmd.AddCommand(healthcheckCmd)
}
