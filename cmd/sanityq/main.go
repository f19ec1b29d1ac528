// Command sanityq runs one GROQ query against a Sanity dataset and prints the result.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samvad-hq/sanity-query/internal/app"
	"github.com/samvad-hq/sanity-query/internal/config"
	"github.com/samvad-hq/sanity-query/internal/logger"
	"github.com/samvad-hq/sanity-query/pkg/sanity"
	"github.com/spf13/pflag"
)

const (
	exitError  = 1
	exitStatus = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sanityq: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var statusErr *sanity.StatusError
	if errors.As(err, &statusErr) {
		return exitStatus
	}
	return exitError
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := pflag.NewFlagSet("sanityq", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: sanityq [flags] <groq query>")
		fs.PrintDefaults()
	}
	fs.String("project", "", "Sanity project id")
	fs.String("dataset", "", "Sanity dataset")
	fs.String("token", "", "API token (omit for public datasets)")
	fs.Bool("prod", true, "production environment")
	fs.String("endpoint", "", "override the data endpoint URL")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Int64("timeout", 0, "HTTP timeout in seconds")
	fs.Int("retries", 0, "maximum attempts per request")
	fs.Float64("rate", 0, "client-side request rate limit per second")
	rawParams := fs.StringArray("param", nil, "query parameter as name=json (repeatable)")
	anonymous := fs.Bool("anonymous", false, "send the query without the access token")
	raw := fs.Bool("raw", false, "print the raw response body and status")
	if err := fs.Parse(args); err != nil {
		return err
	}

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fs.Usage()
		return sanity.ErrMissingQuery
	}
	params, err := parseParams(*rawParams)
	if err != nil {
		return err
	}

	cfg, err := config.LoadWithFlags(fs)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()
	log.DebugObj("sanityq starting", "config", cfg.Redacted())

	client := app.NewHTTPClient(cfg, log)
	sc, err := app.NewSanityConfig(cfg, client)
	if err != nil {
		return err
	}

	switch {
	case *anonymous:
		if len(params) > 0 {
			return errors.New("--param is not supported with --anonymous")
		}
		value, err := sanity.Query{BaseURL: sc.URL(), Query: query}.Execute(ctx, client)
		if err != nil {
			return err
		}
		return printJSON(stdout, value)

	case *raw:
		resp, err := sc.GetWithParams(ctx, query, params)
		if err != nil {
			return err
		}
		fmt.Fprintf(stderr, "HTTP %d\n", resp.StatusCode())
		if _, err := stdout.Write(resp.Body()); err != nil {
			return err
		}
		fmt.Fprintln(stdout)
		return sanity.CheckStatus(resp)

	default:
		res, err := sc.Fetch(ctx, query, params)
		if err != nil {
			return err
		}
		log.DebugObj("query completed", "query_meta", map[string]any{"ms": res.Ms})
		return printRaw(stdout, res.Result)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRaw(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
