// Command monitorctl is the operator CLI for the admin API exposed by
// monitord: list/status, add/remove server, start/stop, and maintenance/
// drain toggles, each a thin HTTP call against the control surface.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	authToken string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "monitorctl",
		Short: "CLI for controlling the cluster health monitor daemon",
		Long:  `Command-line interface for listing monitors and managing their backend servers via the admin API.`,
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("MONITORCTL_SERVER", "http://localhost:8989"), "admin API base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", envOr("MONITORCTL_TOKEN", ""), "bearer token for admin API auth")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered monitors",
		Run:   runList,
	}

	statusCmd := &cobra.Command{
		Use:   "status <name>",
		Short: "Show a monitor's state and tick counter",
		Args:  cobra.ExactArgs(1),
		Run:   runStatus,
	}

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new monitor",
		Args:  cobra.ExactArgs(1),
		Run:   runCreate,
	}
	createCmd.Flags().String("module", "classic", "probe module (classic, synced_cluster)")
	createCmd.Flags().StringSlice("server", nil, "server_ref as name=address:port, repeatable")
	createCmd.Flags().Int64("interval-ms", 2000, "monitor_interval in milliseconds")
	createCmd.Flags().Int64("connect-timeout-ms", 3000, "backend_connect_timeout in milliseconds")
	createCmd.Flags().Int64("read-timeout-ms", 1000, "backend_read_timeout in milliseconds")
	createCmd.Flags().Int64("write-timeout-ms", 2000, "backend_write_timeout in milliseconds")
	createCmd.Flags().Int("connect-attempts", 1, "backend_connect_attempts before declaring a server down")
	createCmd.Flags().String("user", "", "monitor user credential")
	createCmd.Flags().String("password", "", "monitor password credential")

	startCmd := &cobra.Command{
		Use:   "start <name>",
		Short: "Start a stopped monitor",
		Args:  cobra.ExactArgs(1),
		Run:   runSimpleAction("start"),
	}

	stopCmd := &cobra.Command{
		Use:   "stop <name>",
		Short: "Stop a running monitor",
		Args:  cobra.ExactArgs(1),
		Run:   runSimpleAction("stop"),
	}

	addServerCmd := &cobra.Command{
		Use:   "add-server <name> <server=address:port>",
		Short: "Add a backend server to a monitor",
		Args:  cobra.ExactArgs(2),
		Run:   runAddServer,
	}

	removeServerCmd := &cobra.Command{
		Use:   "remove-server <name> <server>",
		Short: "Remove a backend server from a monitor",
		Args:  cobra.ExactArgs(2),
		Run:   runRemoveServer,
	}

	maintCmd := &cobra.Command{Use: "maintenance", Short: "Set or clear a server's MAINT status bit"}
	maintCmd.AddCommand(&cobra.Command{
		Use:   "set <name> <server>",
		Args:  cobra.ExactArgs(2),
		Run:   runStatusBit("maintenance", http.MethodPost),
	})
	maintCmd.AddCommand(&cobra.Command{
		Use:   "clear <name> <server>",
		Args:  cobra.ExactArgs(2),
		Run:   runStatusBit("maintenance", http.MethodDelete),
	})

	drainCmd := &cobra.Command{Use: "drain", Short: "Set or clear a server's Being Drained status bit"}
	drainCmd.AddCommand(&cobra.Command{
		Use:   "set <name> <server>",
		Args:  cobra.ExactArgs(2),
		Run:   runStatusBit("drain", http.MethodPost),
	})
	drainCmd.AddCommand(&cobra.Command{
		Use:   "clear <name> <server>",
		Args:  cobra.ExactArgs(2),
		Run:   runStatusBit("drain", http.MethodDelete),
	})

	rootCmd.AddCommand(listCmd, statusCmd, createCmd, startCmd, stopCmd, addServerCmd, removeServerCmd, maintCmd, drainCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type monitorView struct {
	Name   string `json:"name"`
	Module string `json:"module"`
	Active bool   `json:"active"`
	State  string `json:"state"`
	Ticks  uint64 `json:"ticks"`
}

func runList(cmd *cobra.Command, args []string) {
	body, status := doRequest(http.MethodGet, "/monitors/", nil)
	if status != http.StatusOK {
		log.Fatalf("list monitors: unexpected status %d: %s", status, body)
	}

	var views []monitorView
	if err := json.Unmarshal(body, &views); err != nil {
		log.Fatalf("decode response: %v", err)
	}

	if len(views) == 0 {
		fmt.Println("No monitors registered")
		return
	}

	fmt.Printf("%-20s %-16s %-10s %s\n", "NAME", "MODULE", "STATE", "TICKS")
	fmt.Println(strings.Repeat("-", 60))
	for _, v := range views {
		fmt.Printf("%-20s %-16s %-10s %d\n", v.Name, v.Module, v.State, v.Ticks)
	}
}

func runStatus(cmd *cobra.Command, args []string) {
	name := args[0]
	body, status := doRequest(http.MethodGet, "/monitors/"+name, nil)
	if status == http.StatusNotFound {
		log.Fatalf("monitor %q not found", name)
	}
	if status != http.StatusOK {
		log.Fatalf("get monitor: unexpected status %d: %s", status, body)
	}

	var v monitorView
	if err := json.Unmarshal(body, &v); err != nil {
		log.Fatalf("decode response: %v", err)
	}

	fmt.Printf("Name:   %s\n", v.Name)
	fmt.Printf("Module: %s\n", v.Module)
	fmt.Printf("Active: %t\n", v.Active)
	fmt.Printf("State:  %s\n", v.State)
	fmt.Printf("Ticks:  %d\n", v.Ticks)
}

func runCreate(cmd *cobra.Command, args []string) {
	name := args[0]
	module, _ := cmd.Flags().GetString("module")
	rawServers, _ := cmd.Flags().GetStringSlice("server")
	intervalMs, _ := cmd.Flags().GetInt64("interval-ms")
	connectTimeoutMs, _ := cmd.Flags().GetInt64("connect-timeout-ms")
	readTimeoutMs, _ := cmd.Flags().GetInt64("read-timeout-ms")
	writeTimeoutMs, _ := cmd.Flags().GetInt64("write-timeout-ms")
	connectAttempts, _ := cmd.Flags().GetInt("connect-attempts")
	user, _ := cmd.Flags().GetString("user")
	password, _ := cmd.Flags().GetString("password")

	servers := make([]map[string]any, 0, len(rawServers))
	for _, raw := range rawServers {
		ref, err := parseServerRef(raw)
		if err != nil {
			log.Fatalf("invalid --server %q: %v", raw, err)
		}
		servers = append(servers, ref)
	}

	payload := map[string]any{
		"name":    name,
		"module":  module,
		"servers": servers,
		"settings": map[string]any{
			"monitor_interval_ms":        intervalMs,
			"backend_connect_timeout_ms": connectTimeoutMs,
			"backend_read_timeout_ms":    readTimeoutMs,
			"backend_write_timeout_ms":   writeTimeoutMs,
			"backend_connect_attempts":   connectAttempts,
			"user":                       user,
			"password":                   password,
		},
	}

	body, status := doRequest(http.MethodPost, "/monitors/", payload)
	if status != http.StatusCreated {
		log.Fatalf("create monitor: unexpected status %d: %s", status, body)
	}
	fmt.Printf("monitor %q created\n", name)
}

func parseServerRef(raw string) (map[string]any, error) {
	// name=address:port
	nameAndRest := strings.SplitN(raw, "=", 2)
	if len(nameAndRest) != 2 {
		return nil, fmt.Errorf("expected name=address:port")
	}
	addrAndPort := strings.SplitN(nameAndRest[1], ":", 2)
	if len(addrAndPort) != 2 {
		return nil, fmt.Errorf("expected address:port")
	}
	port, err := strconv.Atoi(addrAndPort[1])
	if err != nil {
		return nil, fmt.Errorf("invalid port %q: %w", addrAndPort[1], err)
	}
	return map[string]any{
		"name":    nameAndRest[0],
		"address": addrAndPort[0],
		"port":    port,
	}, nil
}

func runSimpleAction(action string) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		name := args[0]
		body, status := doRequest(http.MethodPost, fmt.Sprintf("/monitors/%s/%s", name, action), nil)
		if status != http.StatusAccepted {
			log.Fatalf("%s monitor: unexpected status %d: %s", action, status, body)
		}
		fmt.Printf("monitor %q %sped\n", name, action)
	}
}

func runAddServer(cmd *cobra.Command, args []string) {
	name := args[0]
	ref, err := parseServerRef(args[1])
	if err != nil {
		log.Fatalf("invalid server argument: %v", err)
	}

	body, status := doRequest(http.MethodPost, fmt.Sprintf("/monitors/%s/servers", name), ref)
	if status != http.StatusCreated {
		log.Fatalf("add server: unexpected status %d: %s", status, body)
	}
	fmt.Printf("server %q added to monitor %q\n", ref["name"], name)
}

func runRemoveServer(cmd *cobra.Command, args []string) {
	name, server := args[0], args[1]
	body, status := doRequest(http.MethodDelete, fmt.Sprintf("/monitors/%s/servers/%s", name, server), nil)
	if status != http.StatusNoContent {
		log.Fatalf("remove server: unexpected status %d: %s", status, body)
	}
	fmt.Printf("server %q removed from monitor %q\n", server, name)
}

func runStatusBit(bit, method string) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		name, server := args[0], args[1]
		body, status := doRequest(method, fmt.Sprintf("/monitors/%s/servers/%s/%s", name, server, bit), nil)
		if status != http.StatusAccepted {
			log.Fatalf("%s: unexpected status %d: %s", bit, status, body)
		}
		verb := "set"
		if method == http.MethodDelete {
			verb = "cleared"
		}
		fmt.Printf("%s %s for server %q on monitor %q\n", bit, verb, server, name)
	}
}

// doRequest issues an HTTP call against the admin API and returns the
// response body and status code, exiting the process on transport errors.
func doRequest(method, path string, payload any) ([]byte, int) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			log.Fatalf("encode request body: %v", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, strings.TrimRight(serverURL, "/")+path, reqBody)
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("read response body: %v", err)
	}

	return body, resp.StatusCode
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
