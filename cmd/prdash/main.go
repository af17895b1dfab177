package main

import (
	"fmt"
	"os"
)

func main() {
	if err := executeCLI(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`prdash - live dashboard for PRD-driven agent automation

Usage:
  prdash serve          Run the dashboard API server
  prdash status         Print a one-shot project status snapshot
  prdash projects       List registered projects
  prdash start          Launch an executor, reviewer, or qa process
  prdash clear-lock     Remove a stale advisory lock
  prdash retry          Move a completed PRD item back to pending
  prdash cron-install   Install the scheduled executor crontab entry
  prdash cron-uninstall Remove the scheduled executor crontab entry
  prdash config-init    Write a default project config file

Run 'prdash <command> --help' for command flags.`)
}
