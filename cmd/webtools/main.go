// Package main wires together the webtools service binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/JakeFAU/webtools/internal/config"
	"github.com/JakeFAU/webtools/internal/server"
)

type options struct {
	Config    string `long:"config" short:"c" env:"WEBTOOLS_CONFIG" description:"Path to config file"`
	Transport string `long:"transport" short:"t" env:"WEBTOOLS_TRANSPORT" default:"http" choice:"http" choice:"stdio" description:"Serve HTTP (API + /mcp) or MCP over stdio"`
	EnvFile   string `long:"env-file" default:".env" description:"Optional dotenv file loaded before configuration"`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "webtools: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil
		}
		return fmt.Errorf("parse flags: %w", err)
	}

	if err := loadEnv(opts.EnvFile); err != nil {
		return err
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}

	app, err := server.Build(cfg)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	return app.Run(context.Background(), opts.Transport)
}

// loadEnv applies a dotenv file without overriding variables already set.
// A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
