package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/RGU-Computing/clood/internal/config"
	"github.com/RGU-Computing/clood/internal/model"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "clood",
		Short: "CLOOD case-based reasoning engine",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	loadConfig := func() (*config.Config, error) {
		if configPath == "" {
			return nil, fmt.Errorf("--config is required")
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(
			cfg.LogConfig.File,
			cfg.LogConfig.Level,
			int(cfg.LogConfig.FileCount),
			int(cfg.LogConfig.FileSize),
			int(cfg.LogConfig.KeepDays),
			cfg.LogConfig.Console,
		)
		logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
		return cfg, nil
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the CLOOD API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve()
		},
	}

	var descriptorPath string
	ontologyCmd := &cobra.Command{
		Use:   "ontology",
		Short: "ontology grid maintenance",
	}
	buildCmd := &cobra.Command{
		Use:   "build",
		Short: "build the similarity grid described by a descriptor file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if descriptorPath == "" {
				return fmt.Errorf("--descriptor is required")
			}
			raw, err := os.ReadFile(descriptorPath)
			if err != nil {
				return fmt.Errorf("read descriptor: %w", err)
			}
			var d model.OntologyDescriptor
			if err := json.Unmarshal(raw, &d); err != nil {
				return fmt.Errorf("decode descriptor: %w", err)
			}
			if d.ID == "" || len(d.Sources) == 0 {
				return fmt.Errorf("descriptor needs ontologyId and sources")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			count, err := a.grids.Preload(cmd.Context(), d)
			if err != nil {
				return fmt.Errorf("build grid %s: %w", d.ID, err)
			}
			logutil.GetLogger(cmd.Context()).Info("ontology grid built", zap.String("ontology_id", d.ID), zap.Int("rows", count))
			return nil
		},
	}
	buildCmd.Flags().StringVar(&descriptorPath, "descriptor", "", "path to an ontology descriptor JSON file")
	ontologyCmd.AddCommand(buildCmd)

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "global attribute configuration",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "overwrite the stored configuration with the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			global, err := a.configs.Rebuild(cmd.Context())
			if err != nil {
				return err
			}
			logutil.GetLogger(cmd.Context()).Info("config reset", zap.Int("types", len(global.AttributeOptions)))
			return nil
		},
	})

	rootCmd.AddCommand(runCmd, ontologyCmd, configCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}
