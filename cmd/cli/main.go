// Command receipt-cli drives a running receipt dispatcher over HTTP
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thereceipt/receipt-dispatcher/internal/command"
	"github.com/thereceipt/receipt-dispatcher/internal/dispatch"
	"github.com/thereceipt/receipt-dispatcher/internal/printer"
	"github.com/thereceipt/receipt-dispatcher/internal/registry"
)

const defaultServerURL = "http://localhost:12212"

var serverURL string

func main() {
	if err := buildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "receipt-cli",
		Short:        "Drive a running receipt dispatcher",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", defaultServerURL, "server URL")

	rootCmd.AddCommand(
		printersCommand(),
		statusCommand(),
		printCommand(),
		testCommand(),
		orderCommand(),
		debugCommand(),
		jobsCommand(),
		addNetworkCommand(),
		execCommand(),
	)
	return rootCmd
}

func api() *client { return newClient(serverURL) }

func printersCommand() *cobra.Command {
	var scope string
	var all bool

	cmd := &cobra.Command{
		Use:   "printers",
		Short: "List printers",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Printers []printer.Descriptor `json:"printers"`
			}
			path, query := "/printers", url.Values{}
			if all {
				path = "/printers/all"
			} else if scope != "" {
				query.Set("scope", scope)
			}
			if err := api().get(path, query, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderPrinters(resp.Printers))
			return nil
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "usb, network, local or all")
	cmd.Flags().BoolVar(&all, "all", false, "include printers that are not receipt printers")
	return cmd
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <printer-id>",
		Short: "Probe a printer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Printer      printer.Descriptor   `json:"printer"`
				Capabilities printer.Capabilities `json:"capabilities"`
			}
			if err := api().get("/printer/"+url.PathEscape(args[0])+"/status", nil, &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderPrinters([]printer.Descriptor{resp.Printer}))
			caps, _ := json.MarshalIndent(resp.Capabilities, "", "  ")
			fmt.Fprintln(out, string(caps))
			return nil
		},
	}
}

func printCommand() *cobra.Command {
	var file, text, paper string
	var async bool

	cmd := &cobra.Command{
		Use:   "print <printer-id>",
		Short: "Print a receipt document or plain text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			receipt, err := receiptData(file, text)
			if err != nil {
				return err
			}
			body := map[string]interface{}{
				"printerId":   args[0],
				"receiptData": receipt,
			}
			if paper != "" {
				body["paperSize"] = paper
			}
			return submit(cmd, "/print", body, async)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "receipt document JSON file")
	cmd.Flags().StringVarP(&text, "text", "t", "", "plain text to print")
	cmd.Flags().StringVar(&paper, "paper", "", "paper size (mm58 or mm80)")
	cmd.Flags().BoolVar(&async, "async", false, "queue the job and return its id")
	return cmd
}

// receiptData loads the document from a file or wraps text as content
func receiptData(file, text string) (json.RawMessage, error) {
	switch {
	case file != "" && text != "":
		return nil, errors.New("use either --file or --text")
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("%s is not valid JSON", file)
		}
		return data, nil
	case text != "":
		return json.Marshal(map[string]string{"content": strings.ReplaceAll(text, `\n`, "\n")})
	}
	return nil, errors.New("--file or --text is required")
}

func testCommand() *cobra.Command {
	var async bool
	cmd := &cobra.Command{
		Use:   "test <printer-id>",
		Short: "Print the test page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return submit(cmd, "/print/test", map[string]string{"printerId": args[0]}, async)
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "queue the job and return its id")
	return cmd
}

func orderCommand() *cobra.Command {
	var file string
	var async bool

	cmd := &cobra.Command{
		Use:   "order <printer-id>",
		Short: "Send pre-encoded ESC/POS bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return errors.New("--file is required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			query := url.Values{"printerId": {args[0]}}
			if async {
				query.Set("async", "true")
			}

			var out dispatch.Outcome
			var queued struct {
				JobID string `json:"job_id"`
			}
			target := interface{}(&out)
			if async {
				target = &queued
			}
			err = api().do("POST", "/print/order", query, "application/octet-stream", bytes.NewReader(data), target)
			return report(cmd, err, out, queued.JobID)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "file holding the raw bytes")
	cmd.Flags().BoolVar(&async, "async", false, "queue the job and return its id")
	return cmd
}

// submit posts a print request and renders the outcome or the queued job id
func submit(cmd *cobra.Command, path string, body interface{}, async bool) error {
	var query url.Values
	if async {
		query = url.Values{"async": {"true"}}
	}

	var out dispatch.Outcome
	var queued struct {
		JobID string `json:"job_id"`
	}
	target := interface{}(&out)
	if async {
		target = &queued
	}
	err := api().postJSON(path, query, body, target)
	return report(cmd, err, out, queued.JobID)
}

func report(cmd *cobra.Command, err error, out dispatch.Outcome, jobID string) error {
	var apiErr *apiError
	if errors.As(err, &apiErr) && len(apiErr.Body) > 0 {
		// Failed prints still carry an outcome
		if json.Unmarshal(apiErr.Body, &out) == nil && len(out.Trace) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), renderOutcome(out))
			return errors.New(out.Error)
		}
	}
	if err != nil {
		return err
	}
	if jobID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "queued job %s\n", jobID)
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderOutcome(out))
	return nil
}

func debugCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "debug [on|off]",
		Short:     "Show or set debug mode",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Enabled bool `json:"enabled"`
			}
			var err error
			if len(args) == 0 {
				err = api().get("/debug", nil, &resp)
			} else {
				var enabled bool
				switch args[0] {
				case "on", "true":
					enabled = true
				case "off", "false":
				default:
					return fmt.Errorf("expected on or off, got %q", args[0])
				}
				err = api().postJSON("/debug", nil, map[string]bool{"enabled": enabled}, &resp)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "debug %s\n", onOff(resp.Enabled))
			return nil
		},
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func jobsCommand() *cobra.Command {
	var clear bool
	cmd := &cobra.Command{
		Use:   "jobs [job-id]",
		Short: "List queued jobs or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := api()
			out := cmd.OutOrStdout()

			if clear {
				var resp struct {
					Cleared int `json:"cleared"`
				}
				if err := c.delete("/jobs", &resp); err != nil {
					return err
				}
				fmt.Fprintf(out, "cleared %d jobs\n", resp.Cleared)
				return nil
			}

			if len(args) == 1 {
				var job dispatch.Job
				if err := c.get("/job/"+url.PathEscape(args[0]), nil, &job); err != nil {
					return err
				}
				fmt.Fprintln(out, renderJobs([]dispatch.Job{job}))
				if job.Outcome != nil {
					fmt.Fprintln(out, renderOutcome(*job.Outcome))
				}
				return nil
			}

			var resp struct {
				Jobs []dispatch.Job `json:"jobs"`
			}
			if err := c.get("/jobs", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintln(out, renderJobs(resp.Jobs))
			return nil
		},
	}
	cmd.Flags().BoolVar(&clear, "clear", false, "drop completed and failed jobs")
	return cmd
}

func addNetworkCommand() *cobra.Command {
	var name, model string
	cmd := &cobra.Command{
		Use:   "add-network <host> [port]",
		Short: "Declare a network printer",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			port := registry.DefaultPort
			if len(args) == 2 {
				p, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid port: %s", args[1])
				}
				port = p
			}

			var resp struct {
				Printer registry.Entry `json:"printer"`
			}
			body := map[string]interface{}{"host": args[0], "port": port, "name": name, "model": model}
			if err := api().postJSON("/printer/network", nil, body, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", resp.Printer.Key())
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&model, "model", "", "model hint")
	return cmd
}

// execCommand runs a console command on the server
func execCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command...>",
		Short: "Run a console command on the server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result command.Result
			err := api().postJSON("/command", nil, map[string]string{"command": strings.Join(quoteArgs(args), " ")}, &result)
			var apiErr *apiError
			if errors.As(err, &apiErr) && json.Unmarshal(apiErr.Body, &result) == nil && result.Error != "" {
				return errors.New(result.Error)
			}
			if err != nil {
				return err
			}
			if result.Message != "" {
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			}
			return nil
		},
	}
}

// quoteArgs keeps arguments with spaces intact through the server's parser
func quoteArgs(args []string) []string {
	out := make([]string, len(args))
	for i, a := range args {
		if a == "" || strings.ContainsAny(a, " \t") {
			a = `"` + a + `"`
		}
		out[i] = a
	}
	return out
}
