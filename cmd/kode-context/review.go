package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ebernie/kode-context/internal/config"
	"github.com/ebernie/kode-context/internal/core"
	"github.com/ebernie/kode-context/internal/engine"
	"github.com/ebernie/kode-context/internal/gitutil"
	"github.com/ebernie/kode-context/internal/index"
	"github.com/ebernie/kode-context/internal/logger"
)

var (
	titleColor   = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	dimColor     = color.New(color.FgHiBlack)
)

var (
	diffFile      string
	localRepo     string
	baseRev       string
	repoURL       string
	branch        string
	topK          int
	maxTokens     int
	prDescription string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Retrieve context for a review diff",
	Long: `Retrieve the semantic context bundle for a unified diff.

The diff comes from --diff (a file, or - for stdin) or from a local
repository via --repo and --base. Strategy overrides load from a
.kode-context.yml in the repository root when --repo is given.

Examples:
  kode-context review --diff changes.patch --repo-url https://github.com/owner/repo
  git diff main | kode-context review --diff - --repo-url https://github.com/owner/repo
  kode-context review --repo . --base main --repo-url https://github.com/owner/repo`,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringVar(&diffFile, "diff", "", "Unified diff file, or - for stdin")
	reviewCmd.Flags().StringVar(&localRepo, "repo", "", "Local repository path to diff against --base")
	reviewCmd.Flags().StringVar(&baseRev, "base", "main", "Base revision for --repo diffs")
	reviewCmd.Flags().StringVar(&repoURL, "repo-url", "", "Repository URL known to the index service")
	reviewCmd.Flags().StringVar(&branch, "branch", "", "Branch known to the index service")
	reviewCmd.Flags().IntVar(&topK, "top-k", 0, "Maximum chunks to return (0 = configured default)")
	reviewCmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "LLM token budget for the bundle (0 = unlimited)")
	reviewCmd.Flags().StringVar(&prDescription, "description", "", "PR/MR description for intent-aware retrieval")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.NewLogger(cfg.Logging, nil)

	diffContent, err := readDiff()
	if err != nil {
		return err
	}

	var overrides *core.StrategyOverrides
	if localRepo != "" {
		overrides, err = config.LoadStrategyOverrides(localRepo)
		if err != nil && !errors.Is(err, config.ErrOverridesNotFound) {
			return err
		}
	}

	client := index.NewClient(cfg.Index.BaseURL, cfg.Index.RequestTimeout, log)
	eng := engine.New(cfg, client, nil, nil, log)

	bundle, err := eng.BuildContext(context.Background(), engine.Request{
		DiffContent:   diffContent,
		RepoURL:       gitutil.NormalizeRepoURL(repoURL),
		Branch:        branch,
		TopK:          topK,
		MaxTokens:     maxTokens,
		PRDescription: prDescription,
		Overrides:     overrides,
	})
	if err != nil {
		return err
	}
	if bundle == nil {
		warnColor.Fprintln(cmd.OutOrStdout(), "Index service unavailable; no context retrieved.")
		return nil
	}

	printBundle(cmd.OutOrStdout(), bundle)
	return nil
}

func readDiff() (string, error) {
	switch {
	case diffFile == "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read diff from stdin: %w", err)
		}
		return string(data), nil
	case diffFile != "":
		data, err := os.ReadFile(diffFile)
		if err != nil {
			return "", fmt.Errorf("failed to read diff file: %w", err)
		}
		return string(data), nil
	case localRepo != "":
		return gitutil.LocalDiff(localRepo, baseRev)
	default:
		return "", errors.New("either --diff or --repo is required")
	}
}

func printBundle(w io.Writer, bundle *engine.Bundle) {
	titleColor.Fprintf(w, "Context bundle: %d chunks, %d warnings\n\n", len(bundle.Chunks), len(bundle.Warnings))

	for _, warning := range bundle.Warnings {
		c := warnColor
		if warning.Severity == core.SeverityCritical {
			c = errorColor
		}
		c.Fprintf(w, "[%s/%s] %s\n", warning.Kind, warning.Severity, warning.Message)
	}
	if len(bundle.Warnings) > 0 {
		fmt.Fprintln(w)
	}

	for i, chunk := range bundle.Chunks {
		var tags []string
		if chunk.IsModifiedContext {
			tags = append(tags, "modified")
		}
		if chunk.IsTestFile {
			tags = append(tags, "test")
		}
		if chunk.MatchesDescriptionIntent {
			tags = append(tags, "intent")
		}
		tagText := ""
		if len(tags) > 0 {
			tagText = " [" + strings.Join(tags, ",") + "]"
		}

		successColor.Fprintf(w, "%2d. %s:%d-%d", i+1, chunk.Filename, chunk.StartLine, chunk.EndLine)
		dimColor.Fprintf(w, "  score=%.3f (base %.3f x%.2f)%s\n", chunk.Score, chunk.OriginalScore, chunk.WeightMultiplier, tagText)
	}
}
