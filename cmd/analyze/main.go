// Command analyze clusters a transaction history from a file, stdin or
// generated sample data, and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	service "github.com/okian/spendseg/internal/app"
	"github.com/okian/spendseg/internal/config"
	"github.com/okian/spendseg/internal/domain/model"
	"github.com/okian/spendseg/internal/domain/segmentation"
	"github.com/okian/spendseg/internal/sampledata"
	"github.com/okian/spendseg/pkg/logger"
)

type options struct {
	input    string
	format   string
	output   string
	sample   int
	k        int
	features string
	seed     int64
	seeded   bool
	policy   string
	labeling string
	table    string
	compact  bool
	verbose  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		os.Stderr.WriteString("analyze: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.input, "input", "-", "Transactions file, or - for stdin")
	fs.StringVar(&o.format, "format", formatAuto, "Input format: auto, json or csv")
	fs.StringVar(&o.output, "output", "", "Write the result to this file instead of stdout")
	fs.IntVar(&o.sample, "sample", 0, "Ignore -input and generate this many sample transactions")
	fs.IntVar(&o.k, "k", 0, "Number of clusters; 0 selects automatically")
	fs.StringVar(&o.features, "features", "", "Comma separated features (amount, category, date)")
	fs.Int64Var(&o.seed, "seed", 0, "Random seed for reproducible runs")
	fs.StringVar(&o.policy, "policy", "", "Insight policy: strict or lenient")
	fs.StringVar(&o.labeling, "labeling", "", "Labeling strategy: aggregate or representative")
	fs.StringVar(&o.table, "category-table", "", "Category table: default or compact")
	fs.BoolVar(&o.compact, "compact", false, "Print compact JSON")
	fs.BoolVar(&o.verbose, "verbose", false, "Log pipeline progress to stderr")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			o.seeded = true
		}
	})
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if err := logger.InitWithWriter(stderr, false); err != nil {
		return err
	}
	if !o.verbose {
		_ = logger.SetLevelString("error")
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	records, err := loadRecords(o, stdin)
	if err != nil {
		return err
	}

	req := segmentation.Request{
		Records:       records,
		K:             o.k,
		Policy:        o.policy,
		Labeling:      o.labeling,
		CategoryTable: o.table,
	}
	if o.features != "" {
		req.Features = splitList(o.features)
	}
	if o.seeded {
		req.Seed = &o.seed
	}

	res, err := service.NewAnalyzer(cfg).Analyze(ctx, req)
	if err != nil {
		return err
	}
	return writeResult(res, o, stdout)
}

func loadRecords(o options, stdin io.Reader) ([]model.Transaction, error) {
	if o.sample > 0 {
		seed := o.seed
		if !o.seeded {
			seed = 1
		}
		return sampledata.Transactions(seed, o.sample), nil
	}
	if o.input == "" || o.input == "-" {
		return readTransactions(stdin, o.format)
	}
	f, err := os.Open(o.input)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer func() { _ = f.Close() }()
	return readTransactions(f, o.format)
}

func writeResult(res *segmentation.Result, o options, stdout io.Writer) error {
	w := stdout
	if o.output != "" {
		f, err := os.Create(o.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	enc := json.NewEncoder(w)
	if !o.compact {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
