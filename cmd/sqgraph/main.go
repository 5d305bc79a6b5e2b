package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/liliang-cn/sqgraph"
	"github.com/liliang-cn/sqgraph/internal/httpapi"
	"github.com/liliang-cn/sqgraph/pkg/core"
	"github.com/liliang-cn/sqgraph/pkg/embed"
	"github.com/liliang-cn/sqgraph/pkg/hybrid"
)

var (
	dataDir string
	addr    string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:     "sqgraph",
	Short:   "Hybrid vector + graph retrieval engine",
	Version: sqgraph.Version,
	Long: `sqgraph pairs a SQLite-backed vector index with a property graph and
blends vector similarity, graph centrality, and neighbor boost into a
single ranked result list. The serve command exposes the engine over HTTP.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		embedder, err := embed.FromEnv()
		if err != nil {
			return fmt.Errorf("failed to configure embedder: %w", err)
		}

		cfg := sqgraph.DefaultConfig(dataDir)
		cfg.Embedder = embedder
		cfg.Dimensions = embedder.Dim()
		cfg.Logger = newCoreLogger(logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		db, err := sqgraph.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = db.Close() }()

		api := httpapi.NewServer(db, logger)
		srv := &http.Server{
			Addr:         addr,
			Handler:      api.Routes(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			logger.Info("starting server",
				zap.String("address", addr),
				zap.String("data_dir", dataDir),
				zap.Int("dimensions", embedder.Dim()),
			)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server failed to start", zap.Error(err))
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(context.Background())
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		st := db.Status()
		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			data, _ := json.MarshalIndent(st, "", "  ")
			fmt.Println(string(data))
		} else {
			fmt.Println("Database Status:")
			fmt.Printf("  Nodes: %d\n", st.TotalNodes)
			fmt.Printf("  Edges: %d\n", st.TotalEdges)
			fmt.Printf("  Vectors: %d\n", st.TotalVectors)
			fmt.Printf("  Dimensions: %d\n", st.VectorDimension)
			fmt.Printf("  Storage: %s\n", st.StorageType)
			fmt.Printf("  Version: %s\n", st.Version)
		}
		return nil
	},
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Seed a small knowledge graph and run hybrid searches against it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		nodes := []sqgraph.IngestNode{
			{Text: "Vector databases store high dimensional embeddings for similarity search", Metadata: map[string]any{"topic": "vectors"}},
			{Text: "Graph databases model entities and their relationships as nodes and edges", Metadata: map[string]any{"topic": "graphs"}},
			{Text: "Hybrid retrieval blends vector similarity with graph structure", Metadata: map[string]any{"topic": "hybrid"}},
			{Text: "SQLite is a lightweight embedded relational database", Metadata: map[string]any{"topic": "storage"}},
			{Text: "PageRank measures the importance of nodes in a directed graph", Metadata: map[string]any{"topic": "algorithms"}},
		}
		stats, err := db.Ingest(ctx, nodes, nil)
		if err != nil {
			return fmt.Errorf("failed to seed nodes: %w", err)
		}
		ids := stats.NodeIDs

		edges := []struct {
			source, target, kind string
			weight               float64
		}{
			{ids[2], ids[0], "builds_on", 0.9},
			{ids[2], ids[1], "builds_on", 0.9},
			{ids[0], ids[3], "stored_in", 0.7},
			{ids[1], ids[4], "ranked_by", 0.8},
		}
		for _, e := range edges {
			if _, err := db.Graph().CreateEdge(ctx, e.source, e.target, e.kind, e.weight, nil); err != nil {
				return fmt.Errorf("failed to seed edge: %w", err)
			}
		}
		fmt.Printf("Seeded %d nodes and %d edges in %s\n\n", stats.NodesCreated, len(edges), dataDir)

		query := "Hybrid retrieval blends vector similarity with graph structure"
		results, err := db.Hybrid().Search(ctx, query, hybrid.SearchOptions{TopK: 5})
		if err != nil {
			return fmt.Errorf("hybrid search failed: %w", err)
		}
		fmt.Printf("Hybrid search: %q\n", query)
		for i, res := range results {
			fmt.Printf("%d. [%.4f] %s\n", i+1, res.Score, res.Text)
			fmt.Printf("   vector=%.4f centrality=%.4f boost=%.4f\n",
				res.Breakdown.VectorSimilarity, res.Breakdown.GraphCentrality, res.Breakdown.NeighborBoost)
		}

		paths, err := db.Hybrid().MultiHop(ctx, query, hybrid.MultiHopOptions{TopK: 5, MaxDepth: 2})
		if err != nil {
			return fmt.Errorf("multi-hop search failed: %w", err)
		}
		fmt.Println("\nMulti-hop expansion from the best match:")
		for _, p := range paths {
			fmt.Printf("- hop %d [%.4f] %s\n", p.Distance, p.Combined, p.Text)
		}
		return nil
	},
}

// openDB builds the embedder from the environment and opens the stores
// under the configured data directory.
func openDB(ctx context.Context) (*sqgraph.DB, error) {
	embedder, err := embed.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to configure embedder: %w", err)
	}
	cfg := sqgraph.DefaultConfig(dataDir)
	cfg.Embedder = embedder
	cfg.Dimensions = embedder.Dim()

	db, err := sqgraph.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// zapCoreLogger bridges the engine's logger interface onto zap.
type zapCoreLogger struct {
	s *zap.SugaredLogger
}

func newCoreLogger(l *zap.Logger) core.Logger {
	return zapCoreLogger{s: l.Sugar()}
}

func (l zapCoreLogger) Debug(msg string, keyvals ...any) { l.s.Debugw(msg, keyvals...) }
func (l zapCoreLogger) Info(msg string, keyvals ...any)  { l.s.Infow(msg, keyvals...) }
func (l zapCoreLogger) Warn(msg string, keyvals ...any)  { l.s.Warnw(msg, keyvals...) }
func (l zapCoreLogger) Error(msg string, keyvals ...any) { l.s.Errorw(msg, keyvals...) }
func (l zapCoreLogger) With(keyvals ...any) core.Logger {
	return zapCoreLogger{s: l.s.With(keyvals...)}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func init() {
	godotenv.Load()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data", "d", getEnv("SQGRAPH_DATA_DIR", "data"), "Data directory for the SQLite files")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	serveCmd.Flags().StringVar(&addr, "addr", getEnv("SQGRAPH_ADDR", ":8000"), "Address to listen on")
	statusCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(serveCmd, statusCmd, demoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
