package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/BranchIntl/jobforge"
	"github.com/BranchIntl/jobforge/config"
	"github.com/BranchIntl/jobforge/profile"
)

func main() {
	cfg := config.DefaultConfig()

	fs := flag.NewFlagSet("jobforge", flag.ExitOnError)
	cfg.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "jobforge: a synthetic job workload generator")
		fmt.Fprintln(fs.Output(), "\nUsage: jobforge [options]")
		fmt.Fprintln(fs.Output(), "\nOptions:")
		fs.PrintDefaults()
		fmt.Fprintln(fs.Output(), "\nProfiles:")
		for _, p := range profile.Default().Generated() {
			fmt.Fprintf(fs.Output(), "  %-20s queue=%s class=%s\n", p.Name, p.Queue, p.Class)
		}
		fmt.Fprintln(fs.Output(), "\nExample:")
		fmt.Fprintln(fs.Output(), "  jobforge -broker=redis -redis-uri=redis://localhost:6379/ -max-jobs=20")
	}
	_ = fs.Parse(os.Args[1:])

	if err := jobforge.Run(context.Background(), cfg); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
