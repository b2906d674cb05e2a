package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"ats-resume-go/internal/processor"

	"github.com/spf13/cobra"
)

var (
	analyzeJD      string
	analyzeJDFile  string
	analyzePersist bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <resume.pdf>",
	Short: "Analyze a single resume PDF and print the result as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeJD, "jd", "", "Job description text")
	analyzeCmd.Flags().StringVar(&analyzeJDFile, "jd-file", "", "Path to a job description file (text or HTML)")
	analyzeCmd.Flags().BoolVar(&analyzePersist, "persist", false, "Use the configured storage (reports, cache)")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	jd, err := readJobDescription(analyzeJD, analyzeJDFile)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("读取简历文件失败: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, bootstrapOptions{withStorage: analyzePersist})
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	result, err := a.pipeline.Process(ctx, processor.Document{
		Name:           filepath.Base(args[0]),
		Data:           data,
		JobDescription: jd,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(result)
}

// readJobDescription --jd 优先于 --jd-file
func readJobDescription(text, path string) (string, error) {
	if text != "" || path == "" {
		return text, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("读取岗位描述失败: %w", err)
	}
	return string(raw), nil
}
