// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command metricsync copies yesterday's analytics into the daily metrics
// table on a schedule and on demand.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/olegiv/ocms-metricsync/internal/model"
	"github.com/olegiv/ocms-metricsync/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = ""
	appGitCommit = ""
	appBuildTime = ""
)

// options are the parsed command-line flags.
type options struct {
	showVersion bool
	once        bool
	date        model.Date
}

func main() {
	// --help and -h print usage and surface as pflag.ErrHelp
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	info := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}
	if opts.showVersion {
		_, _ = fmt.Println(info.Long("metricsync"))
		os.Exit(0)
	}

	if err := run(opts, info); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var (
		opts    options
		rawDate string
	)

	flagSet := pflag.NewFlagSet("metricsync", pflag.ContinueOnError)
	flagSet.SetOutput(output)
	flagSet.BoolVarP(&opts.showVersion, "version", "v", false, "show version information")
	flagSet.BoolVar(&opts.once, "once", false, "sync one day and exit instead of serving")
	flagSet.StringVar(&rawDate, "date", "", "date to sync with --once (YYYY-MM-DD, default: business yesterday)")
	flagSet.Usage = func() { printHelp(flagSet, output) }

	if err := flagSet.Parse(args); err != nil {
		return opts, err
	}
	if flagSet.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}

	if rawDate != "" {
		if !opts.once {
			return opts, errors.New("--date requires --once")
		}
		d, err := model.ParseDate(rawDate)
		if err != nil {
			return opts, err
		}
		opts.date = d
	}

	return opts, nil
}

func printHelp(flagSet *pflag.FlagSet, w io.Writer) {
	_, _ = fmt.Fprintf(w, "metricsync - daily analytics to metrics table sync\n\n")
	_, _ = fmt.Fprintf(w, "Usage: metricsync [options]\n\n")
	_, _ = fmt.Fprintf(w, "Options:\n")
	_, _ = fmt.Fprint(w, flagSet.FlagUsages())
	_, _ = fmt.Fprintf(w, "\nEnvironment Variables:\n")
	_, _ = fmt.Fprintf(w, "  OCMS_GA_CLIENT_EMAIL            Service account email (required)\n")
	_, _ = fmt.Fprintf(w, "  OCMS_GA_PRIVATE_KEY             Service account PEM key, \\n escapes allowed (required)\n")
	_, _ = fmt.Fprintf(w, "  OCMS_GA_PROPERTY_ID             Analytics property id (required)\n")
	_, _ = fmt.Fprintf(w, "  OCMS_STORE_API_TOKEN            Table store API token (required)\n")
	_, _ = fmt.Fprintf(w, "  OCMS_STORE_BASE_ID              Table store base id (required)\n")
	_, _ = fmt.Fprintf(w, "  OCMS_NOTIFY_SECRET              Manual trigger secret, min 16 bytes (required)\n")
	_, _ = fmt.Fprintf(w, "  OCMS_TELEGRAM_BOT_TOKEN         Telegram bot token (optional)\n")
	_, _ = fmt.Fprintf(w, "  OCMS_TELEGRAM_CHAT_ID           Telegram chat id (optional)\n")
	_, _ = fmt.Fprintf(w, "  OCMS_BUSINESS_UTC_OFFSET_HOURS  Business time zone offset (default: 9)\n")
	_, _ = fmt.Fprintf(w, "  OCMS_SCHEDULE                   Cron schedule in the business zone (default: 0 2 * * *)\n")
	_, _ = fmt.Fprintf(w, "  OCMS_ARCHIVE_BUCKET             S3 bucket for daily snapshots (optional)\n")
}
