// Command query evaluates one query against a database file and prints the
// results.
//
// Usage:
//
//	go run ./cmd/query [-db data/api.db.zst] [-limit 20] [-json] 'is:class tag:deprecated'
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/database"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/grammar"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/blobstore"
	"github.com/Adithya-Monish-Kumar-K/apidocs-search/pkg/logger"
)

type options struct {
	dbPath   string
	limit    int
	asJSON   bool
	logLevel string
}

func main() {
	var opts options
	flag.StringVar(&opts.dbPath, "db", "data/api.db", "database file; .zst, .lz4 and .gz are decompressed")
	flag.IntVar(&opts.limit, "limit", 20, "maximum number of results")
	flag.BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	flag.Parse()

	logger.SetupCLI(opts.logLevel)
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: query [flags] <query>")
		os.Exit(2)
	}
	if err := run(context.Background(), opts, strings.Join(flag.Args(), " "), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "query: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, query string, out io.Writer) error {
	data, err := blobstore.Decompressing(blobstore.NewFile(opts.dbPath), opts.dbPath).Fetch(ctx)
	if err != nil {
		return fmt.Errorf("loading database: %w", err)
	}
	db, err := database.Decode(data)
	if err != nil {
		return err
	}

	p := parser.New(db.TypeSets())
	plan, err := p.Parse(query)
	var parseErr *grammar.Error
	if err != nil {
		if !errors.As(err, &parseErr) {
			return err
		}
		plan = p.Fallback(query)
	}
	result, err := executor.New().Execute(ctx, db, plan, opts.limit)
	if err != nil {
		return err
	}
	if parseErr != nil {
		result.Fallback = true
		result.ParseError = parseErr
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	return printTable(out, result)
}

func printTable(out io.Writer, result *executor.SearchResult) error {
	if result.ParseError != nil {
		fmt.Fprintf(out, "%s (fuzzy fallback)\n", result.ParseError)
	}
	if result.Redirect != "" {
		fmt.Fprintf(out, "go: %s\n", result.Redirect)
	}
	for _, lit := range result.Literals {
		fmt.Fprintln(out, lit)
	}
	if result.Meta != "" {
		fmt.Fprintf(out, "%s: %s\n", result.Meta, strings.Join(result.Listing, ", "))
	}
	if result.Expr == "" {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tNAME\tSCORE\tTAGS")
	for _, row := range result.Results {
		name := row.Primary
		if row.Secondary != "" {
			name += "." + row.Secondary
		}
		tags := strings.Join(row.Tags, ",")
		if row.Removed {
			tags = strings.TrimPrefix(tags+",removed", ",")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", row.Type, name, row.Score, tags)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "%d of %d results\n", len(result.Results), result.TotalHits)
	return err
}
