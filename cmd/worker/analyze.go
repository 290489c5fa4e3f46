package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aetherium-labs/aetherium-backend/internal/flows"
	"github.com/aetherium-labs/aetherium-backend/internal/llm"
	"github.com/aetherium-labs/aetherium-backend/internal/media"
)

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
}

type analyzeOptions struct {
	apiKey   string
	model    string
	maxFiles int
	maxBytes int64
	out      string
}

func newAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <dir>",
		Short: "Run the architecture analysis flow on a local source tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runAnalyze(ctx, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.apiKey, "api-key", os.Getenv("GEMINI_API_KEY"), "Gemini API key")
	cmd.Flags().StringVar(&opts.model, "model", "gemini-2.5-flash", "text model")
	cmd.Flags().IntVar(&opts.maxFiles, "max-files", 200, "stop after this many files")
	cmd.Flags().Int64Var(&opts.maxBytes, "max-file-bytes", 256<<10, "skip files larger than this")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write the report here instead of stdout")
	return cmd
}

func runAnalyze(ctx context.Context, dir string, opts analyzeOptions) error {
	files, err := collectFiles(dir, opts.maxFiles, opts.maxBytes)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found under %s", dir)
	}

	client, err := llm.NewGemini(ctx, llm.GeminiConfig{APIKey: opts.apiKey, TextModel: opts.model})
	if err != nil {
		return err
	}
	svc, err := flows.New(client)
	if err != nil {
		return err
	}

	out, err := svc.GenerateAnalysisReport(ctx, flows.AnalysisInput{Files: files})
	if err != nil {
		return err
	}

	if opts.out == "" {
		_, err = fmt.Fprintln(os.Stdout, out.Report)
		return err
	}
	return os.WriteFile(opts.out, []byte(out.Report), 0o644)
}

// collectFiles walks dir and returns up to maxFiles regular files as data
// URIs, in path order. Paths are relative to dir and slash separated.
func collectFiles(dir string, maxFiles int, maxBytes int64) ([]flows.UploadedFile, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && (skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if maxBytes > 0 && info.Size() > maxBytes {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	if maxFiles > 0 && len(paths) > maxFiles {
		paths = paths[:maxFiles]
	}

	files := make([]flows.UploadedFile, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil, err
		}
		files = append(files, flows.UploadedFile{
			Path:    filepath.ToSlash(rel),
			Content: media.EncodeDataURI(detectType(data), data),
		})
	}
	return files, nil
}

func detectType(data []byte) string {
	ct := http.DetectContentType(data)
	if strings.HasPrefix(ct, "text/plain") {
		return "text/plain"
	}
	return ct
}
