// Package main provides the brainqueryd CLI entry point.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	bqlmcp "github.com/lonniev/thebrain-mcp/pkg/mcp"

	"github.com/lonniev/thebrain-mcp/pkg/bql"
	"github.com/lonniev/thebrain-mcp/pkg/config"
	"github.com/lonniev/thebrain-mcp/pkg/graphservice"
	"github.com/lonniev/thebrain-mcp/pkg/graphservice/httpclient"
	"github.com/lonniev/thebrain-mcp/pkg/graphservice/memstore"
)

var (
	version   = "0.1.0"
	commit    = "dev"
	buildTime = "unknown" // Set via ldflags: -X main.buildTime=$(date +%Y%m%d-%H%M%S)
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "brainqueryd",
		Short: "BrainQuery - a Cypher-subset query engine over TheBrain",
		Long: `brainqueryd runs BrainQuery (BQL) statements against a TheBrain graph,
either directly over TheBrain's REST API or against a local Badger-backed
store for testing and offline use.

Features:
  • MATCH/CREATE/MERGE/SET/DELETE over an associative knowledge graph
  • Two-phase destructive operations (DELETE previews unless confirmed)
  • MCP server exposing a single brain_query tool for LLM clients`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("brainqueryd v%s (%s) built %s\n", version, commit, buildTime)
		},
	})

	var configPath string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}
	serveCmd.Flags().StringVar(&configPath, "config", "", "Path to config.yaml (default: searched in standard locations)")
	rootCmd.AddCommand(serveCmd)

	var local bool
	var dataDir string

	queryCmd := &cobra.Command{
		Use:   "query [statement]",
		Short: "Run a single BrainQuery statement, or start an interactive shell with no arguments",
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm, _ := cmd.Flags().GetBool("confirm")
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if local {
				cfg.GraphService.BaseURL = ""
				cfg.GraphService.LocalDataDir = dataDir
			}
			if len(args) == 1 {
				return runOneShot(cfg, args[0], confirm)
			}
			return runShell(cfg)
		},
	}
	queryCmd.Flags().StringVar(&configPath, "config", "", "Path to config.yaml (default: searched in standard locations)")
	queryCmd.Flags().Bool("confirm", false, "Confirm a DELETE statement instead of only previewing it")
	queryCmd.Flags().BoolVar(&local, "local", false, "Use a local Badger-backed store instead of the configured graph service")
	queryCmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory for --local (empty: in-memory)")
	rootCmd.AddCommand(queryCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = config.FindConfigFile()
	}
	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func openGraphService(cfg *config.Config) (graphservice.Service, func() error, error) {
	if cfg.UsesLocalStore() {
		fmt.Printf("📂 Using local store at %q\n", cfg.GraphService.LocalDataDir)
		store, err := memstore.Open(cfg.GraphService.LocalDataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening local store: %w", err)
		}
		return store, store.Close, nil
	}

	fmt.Printf("🌐 Using TheBrain API at %s\n", cfg.GraphService.BaseURL)
	client := httpclient.New(cfg.GraphService.BaseURL, cfg.GraphService.APIKey, cfg.GraphService.Timeout)
	return client, func() error { return nil }, nil
}

func runServe(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	svc, closeSvc, err := openGraphService(cfg)
	if err != nil {
		return err
	}
	defer closeSvc()

	engine := bql.NewEngine(svc)
	server := bqlmcp.NewMCPServer(engine, cfg.GraphService.ActiveGraphID)

	fmt.Println("✅ brainqueryd MCP server ready, listening on stdio")
	return server.Run(context.Background(), &mcp.StdioTransport{})
}

func runOneShot(cfg *config.Config, statement string, confirm bool) error {
	svc, closeSvc, err := openGraphService(cfg)
	if err != nil {
		return err
	}
	defer closeSvc()

	engine := bql.NewEngine(svc)
	res := engine.Execute(context.Background(), statement, bql.ExecuteOptions{
		Confirm:       confirm,
		ActiveGraphID: cfg.GraphService.ActiveGraphID,
	})
	printResult(res)
	if res.Kind == bql.ResultErrorKind {
		os.Exit(1)
	}
	return nil
}

func runShell(cfg *config.Config) error {
	svc, closeSvc, err := openGraphService(cfg)
	if err != nil {
		return err
	}
	defer closeSvc()

	engine := bql.NewEngine(svc)
	ctx := context.Background()

	fmt.Println("✅ Connected to", cfg.GraphService.ActiveGraphID)
	fmt.Println("Type 'exit' or Ctrl+D to quit")
	fmt.Println("Enter BrainQuery statements (DELETE needs :confirm to actually run):")
	fmt.Println()

	confirmNext := false
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("bql> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		if line == ":confirm" {
			confirmNext = true
			fmt.Println("next DELETE will be confirmed")
			continue
		}

		res := engine.Execute(ctx, line, bql.ExecuteOptions{
			Confirm:       confirmNext,
			ActiveGraphID: cfg.GraphService.ActiveGraphID,
		})
		confirmNext = false
		printResult(res)
	}
	return nil
}

func printResult(res bql.Result) {
	switch res.Kind {
	case bql.ResultRows:
		if len(res.Columns) == 0 {
			fmt.Println("(no columns)")
			return
		}
		header := strings.Join(res.Columns, " | ")
		fmt.Println(header)
		fmt.Println(strings.Repeat("-", len(header)))
		for _, row := range res.Rows {
			values := make([]string, len(row))
			for i, c := range row {
				if c.Node != nil && c.Field == "" {
					values[i] = c.Node.Name
				} else if c.Node != nil {
					values[i] = fmt.Sprintf("%v", fieldValue(c))
				}
			}
			fmt.Println(strings.Join(values, " | "))
		}
	case bql.ResultMutation:
		fmt.Printf("created=%d updated=%d deleted=%d\n", res.Mutation.Created, res.Mutation.Updated, res.Mutation.Deleted)
		for _, w := range res.Mutation.Warnings {
			fmt.Printf("⚠️  %s\n", w)
		}
	case bql.ResultDeletePreview:
		fmt.Printf("would delete %d node(s), %d edge(s):\n", len(res.Preview.WouldDeleteNodes), len(res.Preview.WouldDeleteEdges))
		for _, n := range res.Preview.WouldDeleteNodes {
			fmt.Printf("  - %s (%s)\n", n.Name, n.ID)
		}
		fmt.Println("run again with :confirm to actually delete")
	case bql.ResultErrorKind:
		fmt.Printf("❌ %s: %s\n", res.Err.Kind, res.Err.Message)
	}
}

func fieldValue(c bql.Cell) string {
	switch c.Field {
	case "id":
		return c.Node.ID
	case "name":
		return c.Node.Name
	default:
		return ""
	}
}
