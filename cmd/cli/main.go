package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	apiBase string
	apiKey  string
)

var rootCmd = &cobra.Command{
	Use:   "webtracker",
	Short: "Manage monitored resources through the webtracker API",
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new resource",
	RunE:  runAdd,
}

var (
	addName     string
	addURL      string
	addType     string
	addInterval int
	addUser     string
)

var listCmd = &cobra.Command{
	Use:   "list [userID]",
	Short: "List a user's resources",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

var logsCmd = &cobra.Command{
	Use:   "logs [resourceID]",
	Short: "Show a resource's recent check logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

var removeCmd = &cobra.Command{
	Use:   "remove [resourceID]",
	Short: "Delete a resource and its logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var removeUser string

func main() {
	rootCmd.PersistentFlags().StringVar(&apiBase, "api", envOr("API_BASE", "http://localhost:8080"), "API base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "key", os.Getenv("API_KEY"), "API key")

	addCmd.Flags().StringVar(&addName, "name", "", "unique resource name")
	addCmd.Flags().StringVar(&addURL, "url", "", "resource URL")
	addCmd.Flags().StringVar(&addType, "type", "static", "probe type: static, mailer or telegram")
	addCmd.Flags().IntVar(&addInterval, "interval", 5, "check interval in minutes")
	addCmd.Flags().StringVar(&addUser, "user", "", "owning user id")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("url")
	_ = addCmd.MarkFlagRequired("user")

	removeCmd.Flags().StringVar(&removeUser, "user", "", "requesting user id")
	_ = removeCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(addCmd, listCmd, logsCmd, removeCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runAdd(cmd *cobra.Command, args []string) error {
	body, _ := json.Marshal(map[string]any{
		"name":     addName,
		"url":      addURL,
		"type":     addType,
		"interval": addInterval,
		"user_id":  addUser,
	})
	return call(http.MethodPost, "/api/resources", body)
}

func runList(cmd *cobra.Command, args []string) error {
	return call(http.MethodGet, "/api/resources/by-user/"+args[0], nil)
}

func runLogs(cmd *cobra.Command, args []string) error {
	return call(http.MethodGet, "/api/resources/"+args[0]+"/logs", nil)
}

func runRemove(cmd *cobra.Command, args []string) error {
	return call(http.MethodDelete, "/api/resources/"+args[0]+"?user_id="+removeUser, nil)
}

func call(method, path string, body []byte) error {
	client := &http.Client{Timeout: 10 * time.Second}
	req, err := http.NewRequest(method, apiBase+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("contact API: %w", err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API returned %s: %s", resp.Status, bytes.TrimSpace(out))
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, out, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(out))
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
