package script

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/edit"
	"github.com/Ramsey-B/fern/pkg/schema"
)

// Config holds the configuration for running scripts
type Config struct {
	Files    []string
	DryRun   bool
	Verbose  bool
	Parallel int // Number of parallel workers (0 = sequential)

	// Flavor selects the SQL dialect statements are built for.
	Flavor sqlbuilder.Flavor
	// Provider executes statements. DryRun replaces it with a PrintingProvider.
	Provider edit.PersistenceProvider

	Out    io.Writer
	Logger ectologger.Logger
}

// Result holds the script execution results
type Result struct {
	Total   int
	Passed  int
	Failed  int
	Scripts []ScriptResult
}

// ScriptResult holds results for a single script
type ScriptResult struct {
	Name     string
	FilePath string
	Passed   bool
	Error    string
}

func (r *Result) add(sr ScriptResult) {
	if sr.Passed {
		r.Passed++
	} else {
		r.Failed++
	}
	r.Scripts = append(r.Scripts, sr)
}

// Run executes every script file
func Run(ctx context.Context, config Config) *Result {
	if config.Out == nil {
		config.Out = os.Stdout
	}
	result := &Result{Total: len(config.Files)}

	if config.Parallel > 1 {
		return runParallel(ctx, config, result)
	}
	for _, file := range config.Files {
		result.add(runFile(ctx, config, file))
	}
	return result
}

// runParallel executes scripts concurrently with a worker pool
func runParallel(ctx context.Context, config Config, result *Result) *Result {
	numWorkers := config.Parallel
	if numWorkers > len(config.Files) {
		numWorkers = len(config.Files)
	}

	jobs := make(chan string, len(config.Files))
	results := make(chan ScriptResult, len(config.Files))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				results <- runFile(ctx, config, file)
			}
		}()
	}

	for _, file := range config.Files {
		jobs <- file
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	for sr := range results {
		result.add(sr)
	}
	return result
}

// runFile executes a single script file
func runFile(ctx context.Context, config Config, file string) ScriptResult {
	sr := ScriptResult{FilePath: file}

	def, err := Load(file)
	if err != nil {
		sr.Error = fmt.Sprintf("failed to load script: %v", err)
		fmt.Fprintf(config.Out, "✗ FAILED: %s\n  Error: %v\n", file, err)
		return sr
	}
	sr.Name = def.Name

	fmt.Fprintf(config.Out, "▶ Running: %s\n", def.Name)
	if def.Description != "" && config.Verbose {
		fmt.Fprintf(config.Out, "  Description: %s\n", def.Description)
	}

	if err := Execute(ctx, NewEnv(config), def); err != nil {
		fmt.Fprintf(config.Out, "✗ FAILED: %s\n  Error: %v\n", def.Name, err)
		sr.Error = err.Error()
		return sr
	}

	fmt.Fprintf(config.Out, "✓ PASSED: %s\n", def.Name)
	sr.Passed = true
	return sr
}

// Env is the state one script runs against
type Env struct {
	Catalog   *schema.Catalog
	Reflector *schema.Reflector
	Context   *edit.CommandContext

	rows    map[string]*schema.Row
	out     io.Writer
	verbose bool
}

func NewEnv(config Config) *Env {
	out := config.Out
	if out == nil {
		out = os.Stdout
	}
	logger := config.Logger
	if logger == nil {
		logger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	}
	provider := config.Provider
	if config.DryRun || provider == nil {
		provider = NewPrintingProvider(out)
	}

	catalog := schema.NewCatalog(config.Flavor)
	return &Env{
		Catalog:   catalog,
		Reflector: schema.NewReflector(catalog),
		Context:   edit.NewCommandContext(provider, logger),
		rows:      make(map[string]*schema.Row),
		out:       out,
		verbose:   config.Verbose,
	}
}

// Execute runs the steps of def in order, stopping at the first failure
func Execute(ctx context.Context, env *Env, def *Definition) error {
	for i, step := range def.Steps {
		if err := executeStep(ctx, env, step, fmt.Sprintf("step[%d]", i)); err != nil {
			return fmt.Errorf("script failed at step %d: %w", i, err)
		}
	}
	return nil
}
