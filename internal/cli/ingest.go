package cli

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"nhp/internal/adapter/fs"
	"nhp/internal/domain"
)

var ingestExcludes []string

var ingestCmd = &cobra.Command{
	Use:   "ingest <path|glob>...",
	Short: "Add monograph PDFs to the knowledge base",
	Long: `Extract, chunk and embed monograph documents into the knowledge base.
Directories are searched recursively for .pdf files. A monograph that was
ingested before is replaced by the new version.

Examples:
  nhp ingest ./monographs
  nhp ingest "monographs/**/*.pdf" --exclude "drafts/**"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestExcludes, "exclude", nil, "patterns to skip inside directories")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()

	files, err := fs.NewWalker(nil, ingestExcludes).Resolve(args)
	if err != nil {
		return err
	}
	uploads, err := fs.ReadUploads(files)
	if err != nil {
		return err
	}
	if len(uploads) == 0 {
		return fmt.Errorf("no monograph files found")
	}

	rt, err := openRuntime(ctx, cfg, GetRootDir(), true)
	if err != nil {
		return err
	}
	defer rt.Close()

	bar := progressbar.NewOptions(len(uploads),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	var (
		mu       sync.Mutex
		failures []domain.JobOutcome
		chunks   int
	)
	rt.queue.OnDone(func(o domain.JobOutcome) {
		mu.Lock()
		defer mu.Unlock()
		if o.Status == domain.JobSucceeded {
			chunks += o.Chunks
		} else {
			failures = append(failures, o)
		}
		_ = bar.Add(1)
	})

	startTime := time.Now()
	accepted := 0

	// Submit in queue-sized batches so a large directory never overflows the queue
	batch := cfg.Ingest.QueueSize
	for start := 0; start < len(uploads); start += batch {
		end := min(start+batch, len(uploads))
		ack, err := rt.service.UploadMonographs(ctx, uploads[start:end])
		if err != nil && !errors.Is(err, domain.ErrNoFiles) {
			return fmt.Errorf("failed to queue monographs: %w", err)
		}
		accepted += len(ack.JobIDs)
		if skipped := (end - start) - len(ack.JobIDs); skipped > 0 {
			mu.Lock()
			bar.ChangeMax(bar.GetMax() - skipped)
			mu.Unlock()
		}
		if err := rt.service.WaitForIngestion(ctx); err != nil {
			return err
		}
	}

	if accepted == 0 {
		return fmt.Errorf("%s: %w", noValidFilesMessage, domain.ErrNoFiles)
	}

	status := rt.service.KnowledgeBaseStatus(ctx)

	// Print summary
	fmt.Println()
	fmt.Printf("Ingested %d of %d files in %s\n", accepted-len(failures), len(uploads), formatDuration(time.Since(startTime)))
	fmt.Printf("  Chunks written:   %d\n", chunks)
	fmt.Printf("  Documents loaded: %d\n", status.DocumentsLoaded)
	if len(failures) > 0 {
		fmt.Printf("  Failed:           %d\n", len(failures))
		for _, f := range failures {
			fmt.Printf("    %s: %s\n", f.Source, f.Error)
		}
	}

	return nil
}

const noValidFilesMessage = "No valid PDF files to process."

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
