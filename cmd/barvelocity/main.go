// Command barvelocity serves and runs barbell velocity analysis.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/banshee-data/barvelocity/internal/config"
	"github.com/banshee-data/barvelocity/internal/db"
	"github.com/banshee-data/barvelocity/internal/version"
)

const defaultDBPath = "barvelocity.db"

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) && !errors.Is(err, flag.ErrHelp) {
			log.Printf("barvelocity: %v", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		printUsage(stderr)
		return errUsage
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "serve":
		return runServe(rest, stderr)
	case "analyse", "analyze":
		return runAnalyse(rest, stdout, stderr)
	case "migrate":
		fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
		fs.SetOutput(stderr)
		dbPath := fs.String("db", defaultDBPath, "SQLite database path")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		return db.RunMigrateCommand(fs.Args(), *dbPath, stdout)
	case "version":
		fmt.Fprintln(stdout, version.String())
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: barvelocity <command> [flags]

Commands:
  serve      Run the HTTP and gRPC servers
  analyse    Analyse a local video file
  migrate    Manage database migrations
  version    Print version information
`)
}

// loadTuning reads path, or the bundled defaults when path is empty and the
// defaults file exists.
func loadTuning(path string) (*config.TuningConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.EmptyTuningConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	return config.LoadTuningConfig(path)
}
