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

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *client) do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(payload)))
	}

	if len(payload) == 0 {
		fmt.Println(resp.Status)
		return nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "", "  "); err != nil {
		fmt.Println(string(payload))
		return nil
	}
	fmt.Println(pretty.String())
	return nil
}

func newRootCommand() *cobra.Command {
	var apiBase string

	cmd := &cobra.Command{
		Use:           "meetctl",
		Short:         "Utility for managing meetpoint sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&apiBase, "api", envOr("MEET_API_URL", "http://localhost:8080"), "meetd base URL")

	cmd.AddCommand(newSessionsCommand(&apiBase))
	return cmd
}

func newSessionsCommand(apiBase *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Session lifecycle operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newSessionsCreateCommand(apiBase))
	cmd.AddCommand(newSessionsGetCommand(apiBase))
	cmd.AddCommand(newSessionsListCommand(apiBase))
	cmd.AddCommand(newSessionsCompleteCommand(apiBase))
	cmd.AddCommand(newSessionsDeleteCommand(apiBase))
	return cmd
}

func newSessionsCreateCommand(apiBase *string) *cobra.Command {
	var (
		title    string
		hostName string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if title == "" || hostName == "" {
				return fmt.Errorf("--title and --host are required")
			}
			return newClient(*apiBase).do(http.MethodPost, "/sessions", map[string]string{
				"title":    title,
				"hostName": hostName,
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "session title")
	cmd.Flags().StringVar(&hostName, "host", "", "host display name")
	return cmd
}

func newSessionsGetCommand(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Fetch a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(*apiBase).do(http.MethodGet, "/sessions/"+args[0], nil)
		},
	}
}

func newSessionsListCommand(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List unexpired sessions from the durable store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(*apiBase).do(http.MethodGet, "/sessions", nil)
		},
	}
}

func newSessionsCompleteCommand(apiBase *string) *cobra.Command {
	var placeID string

	cmd := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a session completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(*apiBase).do(http.MethodPost, "/sessions/"+args[0]+"/complete", map[string]string{
				"selectedPlaceId": placeID,
			})
		},
	}
	cmd.Flags().StringVar(&placeID, "place", "", "selected place id")
	return cmd
}

func newSessionsDeleteCommand(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a session and its cached participants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(*apiBase).do(http.MethodDelete, "/sessions/"+args[0], nil)
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
