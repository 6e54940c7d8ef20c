package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3deploy/s3types"
)

var (
	green  = color.New(color.FgHiGreen).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	cyan   = color.New(color.FgHiCyan).SprintFunc()
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "s3deploy [flags] SOURCE",
		Short: "Incrementally deploy a directory to an S3 bucket",
		Long: `Deploys the files under SOURCE to an S3 bucket, uploading only what changed
since the last deploy. State is kept in a deploy manifest stored in the bucket.

Every flag can also be set in a config file or through an S3DEPLOY_* environment
variable, e.g. S3DEPLOY_BUCKET or S3DEPLOY_COMMON_PREFIX.`,
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if v.GetString("bucket") == "" {
				return errors.New("a bucket is required (--bucket or S3DEPLOY_BUCKET)")
			}
			cmd.SilenceUsage = true
			return runDeploy(cmd, v, args[0])
		},
	}

	flags := cmd.Flags()
	flags.SortFlags = false
	flags.StringP("bucket", "b", "", "Target S3 bucket")
	flags.StringP("common-prefix", "p", "", "Key prefix under which files are deployed")
	flags.StringP("acl", "a", string(s3types.ACLPrivate), "Access level of uploaded files")
	flags.String("deploy-manifest-acl", string(s3types.ACLPrivate), "Access level of the deploy manifest")
	flags.BoolP("delete", "d", false, "Delete remote objects missing locally")
	flags.BoolP("force-upload", "u", false, "Upload every file regardless of recorded state")
	flags.BoolP("verbose", "v", false, "Log every planned action")
	flags.StringP("deploy-manifest", "m", s3types.DefaultManifestKey, "Deploy manifest key, relative to the prefix")
	flags.BoolP("create-deploy-manifest", "c", false, "Start from an empty deploy manifest if none exists")
	flags.Bool("dry-run", false, "Show what would change without changing anything")
	flags.Int("concurrency", 5, "Maximum concurrent uploads")
	flags.StringSlice("ignore", nil, "Doublestar pattern to exclude (repeatable)")
	flags.Bool("strict-listing", false, "Fail when any bucket listing page fails")
	flags.String("region", "", "AWS region (default from the environment, then us-east-1)")
	flags.String("endpoint", "", "Custom S3 endpoint URL")
	flags.Bool("path-style", false, "Use path-style addressing")
	flags.String("config", "", "Config file (json, yaml or toml)")

	return cmd
}

func loadConfig(cmd *cobra.Command, v *viper.Viper) error {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config read '%s': %w", path, err)
		}
	}

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix("S3DEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return nil
}

func newLogger(w *os.File, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    !isatty.IsTerminal(w.Fd()),
	}))
}

func clientOptions(v *viper.Viper, logger *slog.Logger) []s3types.Option {
	opts := []s3types.Option{
		s3deploy.WithLogger(logger),
		s3deploy.WithConcurrency(v.GetInt("concurrency")),
	}
	if region := v.GetString("region"); region != "" {
		opts = append(opts, s3deploy.WithRegion(region))
	}
	if endpoint := v.GetString("endpoint"); endpoint != "" {
		opts = append(opts, s3deploy.WithEndpoint(endpoint))
	}
	if v.GetBool("path-style") {
		opts = append(opts, s3deploy.WithForcePathStyle(true))
	}
	return opts
}

func deployOptions(v *viper.Viper) []s3types.DeployOption {
	return []s3types.DeployOption{
		s3deploy.WithACL(s3types.ParseACL(v.GetString("acl"))),
		s3deploy.WithManifestACL(s3types.ParseACL(v.GetString("deploy-manifest-acl"))),
		s3deploy.WithManifestKey(v.GetString("deploy-manifest")),
		s3deploy.WithCreateManifest(v.GetBool("create-deploy-manifest")),
		s3deploy.WithDelete(v.GetBool("delete")),
		s3deploy.WithForceUpload(v.GetBool("force-upload")),
		s3deploy.WithDryRun(v.GetBool("dry-run")),
		s3deploy.WithStrictListing(v.GetBool("strict-listing")),
		s3deploy.WithIgnorePatterns(v.GetStringSlice("ignore")...),
	}
}

func runDeploy(cmd *cobra.Command, v *viper.Viper, source string) error {
	logger := newLogger(os.Stderr, v.GetBool("verbose"))
	slog.SetDefault(logger)

	client, err := s3deploy.New(clientOptions(v, logger)...)
	if err != nil {
		return err
	}

	bucket, prefix := v.GetString("bucket"), v.GetString("common-prefix")
	logger.Info("deploying", "source", source, "bucket", bucket, "prefix", prefix)

	result, err := client.Deploy(cmd.Context(), source, bucket, prefix, deployOptions(v)...)
	if result != nil {
		printSummary(cmd.OutOrStdout(), result)
	}
	return err
}

func printSummary(w io.Writer, r *s3types.DeployResult) {
	if r.DryRun {
		fmt.Fprintln(w, cyan("dry run: no changes applied"))
		for _, k := range r.PlannedUploads {
			fmt.Fprintf(w, "  %s %s\n", green("upload"), k)
		}
		for _, k := range r.PlannedDeletes {
			fmt.Fprintf(w, "  %s %s\n", red("delete"), k)
		}
		fmt.Fprintf(w, "%d to upload, %d to delete, %d unchanged\n",
			len(r.PlannedUploads), len(r.PlannedDeletes), r.FilesSkipped)
		return
	}

	for _, e := range r.Errors {
		if e.Key == "" {
			fmt.Fprintf(w, "%s %s\n", yellow("warning:"), e.Message)
			continue
		}
		fmt.Fprintf(w, "%s %s (%s): %s\n", yellow("failed:"), e.Key, e.Code, e.Message)
	}

	fmt.Fprintf(w, "%s %d uploaded (%s), %d deleted, %d unchanged in %s\n",
		green("done:"),
		len(r.Uploaded),
		humanize.Bytes(uint64(r.BytesUploaded)),
		len(r.Deleted),
		r.FilesSkipped,
		r.Duration.Round(time.Millisecond))
}
