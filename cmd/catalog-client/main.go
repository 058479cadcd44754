package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"robotics-catalog/internal/client"
	"robotics-catalog/internal/logger"
	"robotics-catalog/internal/version"

	"github.com/joho/godotenv"
)

const usage = `catalog-client [flags] <command> [args]

commands:
  list                      list products, newest first
  get <id>                  show one product
  update <id> <json>        apply a partial JSON update, e.g. '{"stock":3}'
  delete <id>               delete a product and its images
  health                    report service health
  version                   print build information

flags:
`

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("url", envOr("CATALOG_URL", "http://localhost:50000"), "catalog base URL (CATALOG_URL)")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.NewHTTPClient(*baseURL, *timeout)
	c.SetDefaultHeader("User-Agent", "catalog-client/"+version.Version)

	if err := run(ctx, c, flag.Args()); err != nil {
		logger.Error(ctx, "catalog-client failed", logger.Err(err), slog.String("command", flag.Arg(0)))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *client.HTTPClient, args []string) error {
	need := func(n int) error {
		if len(args) != n+1 {
			return fmt.Errorf("%s expects %d argument(s)", args[0], n)
		}
		return nil
	}

	switch args[0] {
	case "list":
		products, err := c.ListProducts(ctx)
		if err != nil {
			return err
		}
		return printJSON(products)
	case "get":
		if err := need(1); err != nil {
			return err
		}
		product, err := c.GetProduct(ctx, args[1])
		if err != nil {
			return err
		}
		return printJSON(product)
	case "update":
		if err := need(2); err != nil {
			return err
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(args[2]), &fields); err != nil {
			return fmt.Errorf("parse update fields: %w", err)
		}
		product, err := c.UpdateProduct(ctx, args[1], fields)
		if err != nil {
			return err
		}
		return printJSON(product)
	case "delete":
		if err := need(1); err != nil {
			return err
		}
		if err := c.DeleteProduct(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("deleted", args[1])
		return nil
	case "health":
		status, err := c.Health(ctx)
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	case "version":
		fmt.Printf("%s (commit %s, built %s)\n", version.Version, version.Commit, version.BuildTime)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
