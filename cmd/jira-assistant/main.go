package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jira-assistant/internal/config"
	"jira-assistant/internal/helpers"
	"jira-assistant/internal/logging"
	"jira-assistant/internal/models"
	"jira-assistant/internal/server"
	"jira-assistant/internal/services"
)

var (
	configFile string
	outputDir  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		helpers.PrintError("Error: %v", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "jira-assistant",
		Short: "Jira Assistant - turn problem statements into Jira projects",
		Long: `Jira Assistant generates a project, epic, user stories and tasks from a
problem statement, lets you edit any node and pushes the result to JIRA.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "Configuration file path")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newPublishCmd())
	rootCmd.AddCommand(newTestConnectionCmd())
	rootCmd.AddCommand(newServeCmd())
	return rootCmd
}

func newInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if helpers.FileExists(configFile) && !force {
				return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configFile)
			}
			if err := config.Default().Save(configFile); err != nil {
				return err
			}
			helpers.PrintSuccess("Configuration file created at %s", configFile)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing configuration file")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <problem statement...>",
		Short: "Generate a project structure from a problem statement",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runGenerate,
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "output", "Output directory for generated structures")
	return cmd
}

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <structure.json>",
		Short: "Edit one node of a saved project structure",
		Args:  cobra.ExactArgs(1),
		RunE:  runEdit,
	}
	cmd.Flags().String("kind", "", "Node kind: project, epic, story, task (required)")
	cmd.Flags().String("id", "", "Story or task id")
	cmd.Flags().String("name", "", "New project name")
	cmd.Flags().String("key", "", "New project key")
	cmd.Flags().String("title", "", "New title")
	cmd.Flags().String("description", "", "New description")
	cmd.Flags().String("priority", "", "New priority: Low, Medium, High")
	cmd.MarkFlagRequired("kind")
	return cmd
}

func newPublishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish <structure.json>",
		Short: "Publish a saved project structure",
		Args:  cobra.ExactArgs(1),
		RunE:  runPublish,
	}
	cmd.Flags().BoolP("dry-run", "d", false, "Show what would be created without publishing")
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newTestConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Check JIRA credentials and project access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if err := cfg.Jira.Validate(); err != nil {
				return err
			}
			return services.NewJiraService(&cfg.Jira, nil).TestConnection(cmd.Context(), cfg.Jira.ProjectKey)
		},
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the project session API",
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	return cmd
}

// setup loads the configuration and builds the structured logger
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	statement := strings.TrimSpace(strings.Join(args, " "))
	if statement == "" {
		return services.ErrBlankStatement
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	generator, err := services.NewGenerator(cfg, logger)
	if err != nil {
		return err
	}

	helpers.PrintTitle("Generating Project Structure")
	helpers.PrintInfo("Backend: %s", cfg.Generator.Backend)

	project, err := generator.Generate(cmd.Context(), statement)
	if err != nil {
		return fmt.Errorf("failed to generate project: %w", err)
	}

	services.DisplayProject(helpers.Stdout, project)

	path, err := services.SaveProject(project, outputDir, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	helpers.PrintSuccess("Saved project structure to: %s", path)
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	path := args[0]

	var project models.ProjectData
	if err := helpers.LoadJSON(path, &project); err != nil {
		return fmt.Errorf("failed to load project structure: %w", err)
	}

	target, patch, err := editFromFlags(cmd)
	if err != nil {
		return err
	}

	var editor services.Editor
	if _, err := editor.Begin(&project, target); err != nil {
		return err
	}
	if _, err := editor.Update(patch); err != nil {
		return err
	}
	updated, err := editor.Save(&project)
	if err != nil {
		return err
	}

	if err := helpers.SaveJSON(updated, path); err != nil {
		return fmt.Errorf("failed to save project structure: %w", err)
	}

	if target.Kind == services.EditProject && patch.Name != nil && patch.Key == nil {
		helpers.PrintWarning("Project key '%s' was kept; pass --key to change it", updated.Key)
	}
	helpers.PrintSuccess("Updated %s %s in %s", target.Kind, target.ID, path)
	return nil
}

// editFromFlags turns only the flags that were set into a patch
func editFromFlags(cmd *cobra.Command) (services.EditTarget, services.Patch, error) {
	flags := cmd.Flags()
	kindFlag, _ := flags.GetString("kind")
	kind, err := services.ParseEditKind(kindFlag)
	if err != nil {
		return services.EditTarget{}, services.Patch{}, err
	}
	id, _ := flags.GetString("id")
	if (kind == services.EditStory || kind == services.EditTask) && id == "" {
		return services.EditTarget{}, services.Patch{}, fmt.Errorf("--id is required for %s edits", kind)
	}

	var patch services.Patch
	stringFlag := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	patch.Name = stringFlag("name")
	patch.Key = stringFlag("key")
	patch.Title = stringFlag("title")
	patch.Description = stringFlag("description")
	if p := stringFlag("priority"); p != nil {
		priority := models.Priority(*p)
		patch.Priority = &priority
	}

	return services.EditTarget{Kind: kind, ID: id}, patch, nil
}

func runPublish(cmd *cobra.Command, args []string) error {
	path := args[0]
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	yes, _ := cmd.Flags().GetBool("yes")

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	helpers.PrintTitle("Publishing Project Structure")
	helpers.PrintInfo("Structure file: %s", path)

	var project models.ProjectData
	if err := helpers.LoadJSON(path, &project); err != nil {
		return fmt.Errorf("failed to load project structure: %w", err)
	}
	helpers.PrintSuccess("Loaded project: %s (%s)", project.Name, project.Key)

	if dryRun {
		cfg.Publish.Mode = config.PublishDryRun
	}
	publisher, err := services.NewPublisher(cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Publish.Mode != config.PublishDryRun {
		services.DisplayProject(helpers.Stdout, &project)
		if !yes && !confirmCreation(os.Stdin) {
			helpers.PrintInfo("Operation cancelled by user")
			return nil
		}
	}

	if err := publisher.Publish(cmd.Context(), &project); err != nil {
		return fmt.Errorf("failed to publish project: %w", err)
	}

	helpers.PrintSuccess("Project published (%s)", cfg.Publish.Mode)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	generator, err := services.NewGenerator(cfg, logger)
	if err != nil {
		return err
	}
	publisher, err := services.NewPublisher(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := services.NewStore(generator, publisher, logger)
	ttl := time.Duration(cfg.Server.SessionTTLMinutes) * time.Minute
	go store.RunEviction(ctx, ttl, time.Minute)
	helpers.PrintSuccess("Serving on %s (generator: %s, publish: %s)", cfg.Server.Addr, cfg.Generator.Backend, cfg.Publish.Mode)
	return server.New(store, logger).ListenAndServe(ctx, cfg.Server.Addr)
}

func confirmCreation(in io.Reader) bool {
	reader := bufio.NewReader(in)
	fmt.Print("Do you want to create these tickets in JIRA? (y/N): ")
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
