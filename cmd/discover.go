package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"next-mission/internal/model"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run one discovery pipeline and print the ranked records",
	Long:  "Runs the discovery pipeline for one opportunity kind and owner, waits for the cache commit and prints the ranked records as JSON.",
	RunE:  runDiscoverCmd,
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage stored veteran profiles",
}

var profileImportCmd = &cobra.Command{
	Use:   "import <profile.json>",
	Short: "Encrypt and store a profile document",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileImportCmd,
}

var (
	discoverKind  string
	discoverOwner string
	importOwner   string
)

func init() {
	discoverCmd.Flags().StringVarP(&discoverKind, "kind", "k", string(model.KindJobs), "Opportunity kind: jobs, mentors or events")
	discoverCmd.Flags().StringVarP(&discoverOwner, "owner", "o", "", "Owner identity (required)")
	_ = discoverCmd.MarkFlagRequired("owner")

	profileImportCmd.Flags().StringVarP(&importOwner, "owner", "o", "", "Owner identity (derived from the profile when empty)")

	profileCmd.AddCommand(profileImportCmd)
	rootCmd.AddCommand(discoverCmd, profileCmd)
}

func runDiscoverCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	return runDiscover(cmd.Context(), cfg, buildApp, logger, discoverKind, discoverOwner, cmd.OutOrStdout())
}

// runDiscover 执行一次发现并输出结果，等待异步缓存提交完成后返回。
func runDiscover(ctx context.Context, cfg AppConfig, build buildFunc, logger *zap.Logger, kindName, owner string, out io.Writer) error {
	kind, err := model.ParseKind(kindName)
	if err != nil {
		return err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return fmt.Errorf("owner is required")
	}

	deps, cleanup, err := build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer cleanup()

	records, err := deps.service.Discover(ctx, kind, owner)
	deps.service.Wait()
	if err != nil {
		return fmt.Errorf("discover %s: %w", kind, err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}

func runProfileImportCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open profile: %w", err)
	}
	defer f.Close()

	return runProfileImport(cmd.Context(), cfg, buildApp, logger, importOwner, f, cmd.OutOrStdout())
}

// runProfileImport 读取档案 JSON 并加密保存，输出使用的 owner identity。
func runProfileImport(ctx context.Context, cfg AppConfig, build buildFunc, logger *zap.Logger, owner string, in io.Reader, out io.Writer) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var profile model.Profile
	if err := json.NewDecoder(in).Decode(&profile); err != nil {
		return fmt.Errorf("decode profile: %w", err)
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		owner = model.DeriveOwnerIdentity(profile)
	}

	deps, cleanup, err := build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build app: %w", err)
	}
	defer cleanup()

	if err := deps.profiles.Upsert(ctx, owner, profile); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	logger.Info("profile imported", zap.String("owner", owner), zap.Int("history", len(profile.History)))
	_, err = fmt.Fprintln(out, owner)
	return err
}
