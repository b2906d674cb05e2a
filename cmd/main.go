// ats-resume-go 简历解析与 ATS 评分服务的命令行入口
package main

import (
	"fmt"
	"os"

	"ats-resume-go/internal/config"

	"github.com/spf13/cobra"
)

var (
	version = "1.0.0" //nolint:gochecknoglobals

	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "ats-resume-go",
	Short:         "Resume parsing and ATS scoring service",
	Long:          "ats-resume-go extracts text from resume PDFs, structures it with an LLM and scores it against an ATS rubric.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: search config.yaml)")
}

func main() {
	config.LoadDotEnv()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
