package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/convergeai/core/ai"
	"github.com/convergeai/core/internal/catalog"
	"github.com/convergeai/core/internal/classifier"
	"github.com/convergeai/core/internal/config"
	"github.com/convergeai/core/internal/configloader"
	"github.com/convergeai/core/internal/coordinator"
	"github.com/convergeai/core/internal/dialog"
	"github.com/convergeai/core/internal/entity"
	"github.com/convergeai/core/internal/graph"
	"github.com/convergeai/core/internal/llm"
	"github.com/convergeai/core/internal/metrics"
	"github.com/convergeai/core/internal/policy"
	"github.com/convergeai/core/internal/priority"
	"github.com/convergeai/core/internal/profile"
	"github.com/convergeai/core/internal/question"
	"github.com/convergeai/core/internal/taskagent"
	"github.com/convergeai/core/internal/vectorindex"
	"github.com/convergeai/core/internal/version"
	"github.com/convergeai/core/server"
	"github.com/convergeai/core/store"
	"github.com/convergeai/core/store/db"
	"github.com/convergeai/core/store/db/postgres"
)

var rootCmd = &cobra.Command{
	Use:   "convergeai",
	Short: "A conversational-AI core: intent classification, slot-filling dialog, and policy-grounded answers for a home-services booking platform.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		if err := run(); err != nil {
			slog.Error("convergeai: fatal", "error", err)
			os.Exit(1)
		}
	},
}

func run() error {
	instanceProfile := &profile.Profile{
		Mode:        viper.GetString("mode"),
		Addr:        viper.GetString("addr"),
		Port:        viper.GetInt("port"),
		Data:        viper.GetString("data"),
		Driver:      viper.GetString("driver"),
		DSN:         viper.GetString("dsn"),
		InstanceURL: viper.GetString("instance-url"),
		Version:     version.GetCurrentVersion(viper.GetString("mode")),
	}
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbDriver, err := db.NewDBDriver(instanceProfile)
	if err != nil {
		return fmt.Errorf("create db driver: %w", err)
	}

	storeInstance := store.New(dbDriver, instanceProfile)
	defer storeInstance.Close()

	if err := storeInstance.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	pgDriver, ok := dbDriver.(*postgres.DB)
	if !ok {
		return fmt.Errorf("unsupported driver %T: policy vector index requires postgres", dbDriver)
	}

	loader := configloader.NewLoader(instanceProfile.ConfigDir)

	catalogRegistry := catalog.NewRegistry(loader)
	if err := catalogRegistry.Reload(); err != nil {
		return fmt.Errorf("load intent catalog: %w", err)
	}
	configStore, err := config.NewDefaultStore(loader)
	if err != nil {
		return fmt.Errorf("load runtime config: %w", err)
	}

	llmSvc, err := llm.NewService(&llm.Config{
		Provider:       instanceProfile.ALLMProvider,
		Model:          instanceProfile.ALLMModel,
		APIKey:         instanceProfile.ALLMAPIKey,
		BaseURL:        instanceProfile.ALLMBaseURL,
		MaxTokens:      8192,
		Timeout:        instanceProfile.ALLMTimeout,
		RequestsPerSec: 5,
	})
	if err != nil {
		return fmt.Errorf("create llm service: %w", err)
	}
	llmSvc.Warmup(ctx)

	embedder, err := ai.NewEmbeddingService(&ai.EmbeddingConfig{
		Provider:   instanceProfile.AIEmbeddingProvider,
		Model:      instanceProfile.AIEmbeddingModel,
		APIKey:     instanceProfile.AIEmbeddingAPIKey,
		BaseURL:    instanceProfile.AIEmbeddingBaseURL,
		Dimensions: 384,
	})
	if err != nil {
		return fmt.Errorf("create embedding service: %w", err)
	}

	vectorIndex := vectorindex.NewPostgresIndex(pgDriver.SQLDB(), "policy_chunk")

	bookingLookup := entity.BookingLookup(func(ctx context.Context, bookingID, userID string) (bool, error) {
		booking, err := storeInstance.GetBooking(ctx, bookingID)
		if err != nil {
			return false, nil
		}
		return booking != nil && booking.UserID == userID, nil
	})

	classifierSvc := classifier.New(classifier.Config{
		Catalog:  catalogRegistry,
		LLM:      llmSvc,
		Feedback: dbDriver,
	})
	extractor := entity.New(catalogRegistry, llmSvc)
	validator := entity.NewValidator(catalogRegistry, configStore, bookingLookup)
	dialogMgr := dialog.New(storeInstance, catalogRegistry, 30*time.Minute)
	questionGen := question.New(catalogRegistry, llmSvc)

	graphRt := graph.New(graph.Config{
		Catalog:    catalogRegistry,
		Classifier: classifierSvc,
		Extractor:  extractor,
		Validator:  validator,
		DialogMgr:  dialogMgr,
		Questions:  questionGen,
	})

	policyAgent := policy.New(vectorIndex, embedder, llmSvc, configStore)
	priorityQueue := priority.New(storeInstance, configStore)

	taskAgents := taskagent.NewRegistry()
	taskAgents.Register("booking", taskagent.NewBookingAgent(storeInstance, priorityQueue))
	taskAgents.Register("cancellation", taskagent.NewCancellationAgent(storeInstance, configStore, priorityQueue))
	taskAgents.Register("complaint", taskagent.NewComplaintAgent(storeInstance, configStore, priorityQueue))

	coord := coordinator.New(coordinator.Config{
		Store:      storeInstance,
		GraphRt:    graphRt,
		Catalog:    catalogRegistry,
		TaskAgents: taskAgents,
		Policy:     policyAgent,
		LLM:        llmSvc,
		Priority:   priorityQueue,
	})

	srv := server.New(instanceProfile, coord)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, terminationSignals...)
	go func() {
		<-sigCh
		cancel()
	}()

	printGreetings(instanceProfile)

	addr := fmt.Sprintf("%s:%d", instanceProfile.Addr, instanceProfile.Port)
	return srv.Start(ctx, addr)
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "postgres")
	viper.SetDefault("port", 28081)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28081, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "postgres", "database driver (postgres only)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (DSN)")
	rootCmd.PersistentFlags().String("instance-url", "", "the public url of this convergeai instance")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn", "instance-url"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("convergeai")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("ConvergeAI core %s started successfully!\n", p.Version)
	if p.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if p.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", p.DSN)
		}
	}
	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("Database driver: %s\n", p.Driver)
	fmt.Printf("Mode: %s\n", p.Mode)
	if p.Addr == "" {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
}

func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
