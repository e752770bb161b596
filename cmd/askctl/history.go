package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/askcatalog/internal/config"
	"github.com/fyrsmithlabs/askcatalog/internal/logging"
	"github.com/fyrsmithlabs/askcatalog/internal/memory"
	"github.com/fyrsmithlabs/askcatalog/internal/secrets"
)

var (
	// history command flags
	hsConfigPath string
	hsSessionID  string
	hsLimit      int
	hsOutputJSON bool
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyGetCmd)
	historyCmd.AddCommand(historyUpdateCmd)
	historyCmd.AddCommand(historyDeleteCmd)

	historyCmd.PersistentFlags().StringVar(&hsConfigPath, "config", "", "askcatalog config file (memory section)")
	historyCmd.PersistentFlags().BoolVar(&hsOutputJSON, "json", false, "Output results as JSON")

	historyListCmd.Flags().StringVar(&hsSessionID, "session", "", "Filter by session ID")
	historyListCmd.Flags().IntVar(&hsLimit, "limit", 0, "Show only the most recent N messages (0 for all)")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Administer stored conversation history",
	Long: `Read and edit the long-term conversation store directly.

The store is opened with the memory settings of the askcatalog config, so
these commands work while the server is down. Updated content is scrubbed
for secrets like any other write.

Examples:
  # List the last 20 messages
  askctl history list --limit 20

  # Show one message
  askctl history get 42

  # Replace a message's content
  askctl history update 42 "corrected text"

  # Delete a message
  askctl history delete 42`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored messages in id order",
	RunE:  runHistoryList,
}

var historyGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one stored message",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryGet,
}

var historyUpdateCmd = &cobra.Command{
	Use:   "update <id> <content>",
	Short: "Replace the content of a stored message",
	Args:  cobra.ExactArgs(2),
	RunE:  runHistoryUpdate,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a stored message",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

// openStore opens the configured long-term store with secret scrubbing.
func openStore() (memory.Store, error) {
	cfg, err := config.LoadUnvalidated(hsConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	scrubber, err := secrets.New(secrets.ConfigFrom(cfg.Secrets))
	if err != nil {
		return nil, fmt.Errorf("failed to create secret scrubber: %w", err)
	}
	store, err := memory.Open(cfg.Memory, scrubber, logging.NewNop())
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation store: %w", err)
	}
	return store, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return id, nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	all, err := store.All(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}

	msgs := all[:0:0]
	for _, m := range all {
		if hsSessionID == "" || m.SessionID == hsSessionID {
			msgs = append(msgs, m)
		}
	}
	if hsLimit > 0 && len(msgs) > hsLimit {
		msgs = msgs[len(msgs)-hsLimit:]
	}

	if hsOutputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	}

	if len(msgs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No messages found")
		return nil
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSESSION\tROLE\tCREATED\tCONTENT")
	for _, m := range msgs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			m.ID, m.SessionID, m.Role, m.CreatedAt.Format("2006-01-02 15:04:05"), truncate(strings.ReplaceAll(m.Content, "\n", " "), 60))
	}
	return w.Flush()
}

func runHistoryGet(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	m, err := store.Get(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("failed to get message %d: %w", id, err)
	}

	if hsOutputJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ID:      %d\n", m.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "Session: %s\n", m.SessionID)
	fmt.Fprintf(cmd.OutOrStdout(), "Role:    %s\n", m.Role)
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", m.Content)
	return nil
}

func runHistoryUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Update(cmd.Context(), id, args[1]); err != nil {
		return fmt.Errorf("failed to update message %d: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated message %d\n", id)
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to delete message %d: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted message %d\n", id)
	return nil
}

// truncate shortens s to maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
