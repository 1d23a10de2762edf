// Package main is the shiori CLI entry point.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/shiori/internal/config"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shiori/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence, and a missing default file falls
// back to built-in defaults. Returns the config and the path actually loaded
// (empty when running on defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyEnv(cfg)
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command, args := os.Args[1], os.Args[2:]
	var err error
	switch command {
	case "server":
		err = runServer(args)
	case "search":
		err = runSearch(args, os.Stdout)
	case "cluster":
		err = runCluster(args, os.Stdout)
	case "add":
		err = runAdd(args, os.Stdout)
	case "status":
		err = runStatus(args, os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("shiori version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
		os.Exit(1)
	}
}

// argsReorder moves any flags (and their values) that appear after the
// positional arguments to the front so flag.Parse sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args with spaces so multi-word input works the
// same with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func printUsage() {
	fmt.Println(`shiori - semantic search and topic clustering for reading notes

Usage:
  shiori server [flags]             Start the HTTP server (and the import watcher)
  shiori search [flags] <query>     Rank notes by similarity to the query
  shiori cluster [flags]            Group notes into topical clusters
  shiori add [flags] <text|path>    Add a note, or import a file or directory
  shiori status [flags]             Show note counts and model status
  shiori version                    Show version
  shiori help                       Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/shiori/config.yaml)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to open the storage directly.
  --token string     Bearer token for servers in token auth mode (or SHIORI_TOKEN)
  --user string      User id (development auth mode or direct storage)
  --output string    Output format: text or json (default: text)

Server Flags:
  --debug            Enable debug logging

Search Flags:
  --k int            Number of results, 1-50 (default from config)
  --book string      Only search notes of this book

Cluster Flags:
  --k int            Number of clusters, 2-20 (default from config)
  --per-cluster int  Representatives per cluster, 1-10 (default from config)
  --book string      Only cluster notes of this book

Add Flags:
  --book string      Attach the note to this book
  --file             Treat the argument as a file or directory to import (direct storage only)

Examples:
  shiori server
  shiori add "The sea is the universal sewer"
  shiori search ocean currents
  shiori search --k 3 --output json "ocean currents"
  shiori cluster --k 4 --per-cluster 2
  shiori add --file --server "" ~/notes
  shiori status`)
}
