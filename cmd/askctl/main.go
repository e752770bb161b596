// Package main implements askctl, a CLI for operating an askcatalog server
// and its conversation history.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the askcatalog HTTP server
	serverURL string
	// sessionID is sent as X-Session-ID when set
	sessionID string
	// adminToken authorizes administrative requests
	adminToken string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "askctl",
	Short: "CLI for askcatalog operations",
	Long: `askctl is a command-line interface for the askcatalog service.
It asks questions, checks server health, triggers index rebuilds and
administers stored conversation history.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8000", "askcatalog server URL")
	askCmd.Flags().StringVar(&sessionID, "session", "", "conversation session ID")
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(indexCmd)
	indexBuildCmd.Flags().StringVar(&adminToken, "token", os.Getenv("ASKCATALOG_SERVER_ADMIN_TOKEN"), "admin bearer token (default $ASKCATALOG_SERVER_ADMIN_TOKEN)")
	indexCmd.AddCommand(indexBuildCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the catalog",
	Long: `Ask a question and print the answer.

Examples:
  # Ask a question
  askctl ask "Which application should I use for object storage?"

  # Continue a conversation
  askctl ask --session 3f6c... "And for queues?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check askcatalog server health",
	Long: `Check the health status of the askcatalog HTTP server.

Examples:
  # Check health
  askctl health

  # Check health on a different server
  askctl health --server http://localhost:8080`,
	RunE: runHealth,
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector index",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Rebuild the index from the current catalog",
	Long: `Ask the server to reload the catalog, rebuild the vector index and swap
it in. Requests keep being answered from the previous index until the
rebuild completes. The server must have server.admin_token set; pass the
same value with --token.`,
	RunE: runIndexBuild,
}

// AnswerRequest matches internal/http AnswerRequest.
type AnswerRequest struct {
	Question string `json:"question"`
}

// AnswerResponse matches internal/http AnswerResponse.
type AnswerResponse struct {
	Answer string `json:"answer"`
}

// HealthResponse matches internal/http HealthResponse.
type HealthResponse struct {
	Status string `json:"status"`
}

// RebuildResponse matches internal/http RebuildResponse.
type RebuildResponse struct {
	Version int64  `json:"version"`
	Origin  string `json:"origin"`
	Rows    int    `json:"rows"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	reqJSON, err := json.Marshal(AnswerRequest{Question: strings.Join(args, " ")})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/answer", serverURL)
	httpReq, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		httpReq.Header.Set("X-Session-ID", sessionID)
	}

	var answer AnswerResponse
	resp, err := do(httpReq, 2*time.Minute, &answer)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), answer.Answer)
	if sid := resp.Header.Get("X-Session-ID"); sid != "" && sid != sessionID {
		fmt.Fprintf(cmd.ErrOrStderr(), "[askctl] session: %s\n", sid)
	}
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	url := fmt.Sprintf("%s/health", serverURL)
	httpReq, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	var healthResp HealthResponse
	if _, err := do(httpReq, 5*time.Second, &healthResp); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server Status: %s\n", healthResp.Status)
	fmt.Fprintf(cmd.OutOrStdout(), "Server URL: %s\n", serverURL)
	return nil
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	if adminToken == "" {
		return fmt.Errorf("an admin token is required (--token or ASKCATALOG_SERVER_ADMIN_TOKEN)")
	}
	url := fmt.Sprintf("%s/api/v1/index/rebuild", serverURL)
	httpReq, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+adminToken)

	var rebuilt RebuildResponse
	if _, err := do(httpReq, 10*time.Minute, &rebuilt); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Index rebuilt: version %d, %d rows\n", rebuilt.Version, rebuilt.Rows)
	return nil
}

// do sends req and decodes a 200 JSON response into out.
func do(req *http.Request, timeout time.Duration, out interface{}) (*http.Response, error) {
	client := &http.Client{Timeout: timeout}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if readErr != nil {
			return nil, fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp, nil
}
