package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fratlas/internal/extract"
	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/worker"
)

var (
	processMime    string
	processOut     string
	processTimeout time.Duration
	correctionsIn  string
	entitiesHTML   bool
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <file>",
	Short: "Recognize a single scanned claim form",
	Long: `Process runs recognition on one scanned FORM-A claim form and prints
the extracted fields as JSON. Nothing is stored.

The MIME type is guessed from the extension unless --mime is given;
it shapes the confidence score (PDF scans read best).

Example:
  fratlas process form-a.pdf
  fratlas process scan.jpg --out result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

// reprocessCmd represents the reprocess command
var reprocessCmd = &cobra.Command{
	Use:   "reprocess <file>",
	Short: "Recognize a form again with reviewer corrections applied",
	Long: `Reprocess recognizes the file again and lays the corrections from a JSON
file over the result. Corrected output is marked with 100% confidence.

Example:
  fratlas reprocess form-a.pdf --corrections fixes.json`,
	Args: cobra.ExactArgs(1),
	RunE: runReprocess,
}

// entitiesCmd represents the entities command
var entitiesCmd = &cobra.Command{
	Use:   "entities [file]",
	Short: "Extract villages, names, areas and claim IDs from text",
	Long: `Entities scans free text (a file, or stdin when no file is given) for
labelled claim entities. HTML input is flattened to visible text first.

Example:
  fratlas entities transcript.txt
  curl -s https://portal.example/claim/42 | fratlas entities --html`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEntities,
}

func init() {
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(reprocessCmd)
	rootCmd.AddCommand(entitiesCmd)

	for _, c := range []*cobra.Command{processCmd, reprocessCmd} {
		c.Flags().StringVar(&processOut, "out", "", "write JSON here instead of stdout")
		c.Flags().DurationVar(&processTimeout, "timeout", time.Minute, "recognition timeout")
	}
	processCmd.Flags().StringVar(&processMime, "mime", "", "declared MIME type (default: from extension)")
	reprocessCmd.Flags().StringVar(&correctionsIn, "corrections", "", "JSON file with corrected fields (required)")
	_ = reprocessCmd.MarkFlagRequired("corrections")

	entitiesCmd.Flags().BoolVar(&entitiesHTML, "html", false, "treat input as HTML (default: detect)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	path := args[0]
	mimeType := processMime
	if mimeType == "" {
		mimeType = worker.MimeTypeFor(path)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), processTimeout)
	defer cancel()

	result, err := newComponents(cfg, logger).engine.Process(ctx, path, mimeType)
	if err != nil {
		return fmt.Errorf("process failed: %w", err)
	}

	return writeOutput(cmd.OutOrStdout(), processOut, result)
}

func runReprocess(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	corrections, err := readCorrections(correctionsIn)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), processTimeout)
	defer cancel()

	result, err := newComponents(cfg, logger).engine.Reprocess(ctx, args[0], corrections)
	if err != nil {
		return fmt.Errorf("reprocess failed: %w", err)
	}

	return writeOutput(cmd.OutOrStdout(), processOut, result)
}

func runEntities(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var data []byte
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	text := string(data)
	if entitiesHTML || extract.LooksLikeHTML(text) {
		if text, err = extract.VisibleText(text); err != nil {
			return fmt.Errorf("parse HTML: %w", err)
		}
	}

	entities, err := newComponents(cfg, logger).extractor.Extract(cmd.Context(), text)
	if err != nil {
		return fmt.Errorf("extract entities: %w", err)
	}

	return writeOutput(cmd.OutOrStdout(), "", entities)
}

func readCorrections(path string) (model.Corrections, error) {
	var c model.Corrections

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read corrections: %w", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse corrections %s: %w", path, err)
	}
	return c, nil
}

// writeOutput writes v as indented JSON to path, or to w when path is empty
func writeOutput(w io.Writer, path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
