package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"ats-resume-go/internal/processor"
	"ats-resume-go/internal/types"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	batchJD      string
	batchPersist bool
	batchFilter  bool

	batchCriteria struct {
		minCGPA, minTenth, minTwelfth, minATS float64
		skills, language, department, degree  string
	}
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir|file.pdf>...",
	Short: "Analyze many resumes concurrently and print one JSON line per file",
	Long: "Analyze every PDF in the given directories and files. Progress is printed in input order as JSON lines. " +
		"With --filter the criteria flags select matching candidates and a final summary line is printed.",
	Args: cobra.MinimumNArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchJD, "jd", "", "Job description text applied to every resume")
	batchCmd.Flags().BoolVar(&batchPersist, "persist", false, "Use the configured storage (reports, cache)")
	batchCmd.Flags().BoolVar(&batchFilter, "filter", false, "Apply the filter criteria and stream filter events")
	batchCmd.Flags().AddFlagSet(criteriaFlags())
	rootCmd.AddCommand(batchCmd)
}

// criteriaFlags 筛选条件，与 HTTP 表单字段同名
func criteriaFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("criteria", pflag.ContinueOnError)
	fs.Float64Var(&batchCriteria.minCGPA, "cgpa", 0, "Minimum CGPA")
	fs.Float64Var(&batchCriteria.minTenth, "tenth", 0, "Minimum 10th percentage")
	fs.Float64Var(&batchCriteria.minTwelfth, "twelfth", 0, "Minimum 12th percentage")
	fs.Float64Var(&batchCriteria.minATS, "ats", 0, "Minimum ATS score")
	fs.StringVar(&batchCriteria.skills, "skills", "", "Required skills, comma separated")
	fs.StringVar(&batchCriteria.language, "language", "", "Required language")
	fs.StringVar(&batchCriteria.department, "department", "", "Required bachelor department")
	fs.StringVar(&batchCriteria.degree, "degree", "", "Required bachelor degree")
	return fs
}

// batchLine 非筛选模式下每份文件一行
type batchLine struct {
	Index   int                   `json:"index"`
	File    string                `json:"file"`
	Result  *types.PipelineResult `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
	Skipped bool                  `json:"skipped,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) error {
	paths, err := collectPDFs(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("没有找到PDF文件")
	}
	docs := make([]processor.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("读取文件 %s 失败: %w", p, err)
		}
		docs = append(docs, processor.Document{Name: filepath.Base(p), Data: data, JobDescription: batchJD})
	}

	// Ctrl-C 后不再派发新文件，已开始的文件跑完
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx, bootstrapOptions{withStorage: batchPersist})
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	out := json.NewEncoder(cmd.OutOrStdout())
	out.SetEscapeHTML(false)
	if batchFilter {
		return runFilter(ctx, a, docs, out)
	}

	summary, err := a.batchRunner().Run(ctx, docs, func(item processor.ItemResult) {
		line := batchLine{Index: item.Index, File: item.Name, Result: item.Result, Skipped: item.Skipped}
		if item.Err != nil {
			line.Error = item.Err.Error()
		}
		writeLine(out, cmd.ErrOrStderr(), line)
	})
	if summary != nil {
		a.logger.Info().
			Int("succeeded", summary.Succeeded).
			Int("failed", summary.Failed).
			Int("skipped", summary.Skipped).
			Bool("quota_stopped", summary.QuotaStopped).
			Msg("批处理结束")
	}
	return err
}

func runFilter(ctx context.Context, a *app, docs []processor.Document, out *json.Encoder) error {
	criteria := processor.FilterCriteria{
		MinCGPA:    batchCriteria.minCGPA,
		MinTenth:   batchCriteria.minTenth,
		MinTwelfth: batchCriteria.minTwelfth,
		MinATS:     batchCriteria.minATS,
		Skills:     processor.SplitSkills(batchCriteria.skills),
		Language:   batchCriteria.language,
		Department: batchCriteria.department,
		Degree:     batchCriteria.degree,
	}
	filter := processor.NewResumeFilter(a.batchRunner())
	done, err := filter.Run(ctx, docs, criteria, func(ev types.FilterProgress) {
		writeLine(out, os.Stderr, ev)
	})
	if err != nil && !errors.Is(err, processor.ErrBatchCancelled) {
		return err
	}
	writeLine(out, os.Stderr, done)
	return err
}

func writeLine(out *json.Encoder, errOut io.Writer, v any) {
	if err := out.Encode(v); err != nil {
		fmt.Fprintf(errOut, "写出结果失败: %v\n", err)
	}
}

// collectPDFs 目录只取一层 .pdf 文件，按文件名排序
func collectPDFs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}
