package schema

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/edit"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type executed struct {
	sql  string
	args []any
}

// recordingProvider accepts every statement without a database.
type recordingProvider struct {
	mu         sync.Mutex
	statements []executed
	failOn     string
}

func (p *recordingProvider) IsConnected(ctx context.Context) bool {
	return true
}

func (p *recordingProvider) OpenContext(ctx context.Context, purpose edit.Purpose, description string) (edit.PersistContext, error) {
	return &recordingContext{provider: p}, nil
}

func (p *recordingProvider) sql() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.statements))
	for _, s := range p.statements {
		out = append(out, s.sql)
	}
	return out
}

type recordingContext struct {
	provider *recordingProvider
}

func (c *recordingContext) Exec(ctx context.Context, statement string, args ...any) error {
	p := c.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn != "" && statement == p.failOn {
		return errFailed
	}
	p.statements = append(p.statements, executed{sql: statement, args: args})
	return nil
}

func (c *recordingContext) Close(ctx context.Context) error {
	return nil
}

type failure string

func (f failure) Error() string { return string(f) }

const errFailed = failure("statement failed")

func newSession(flavor sqlbuilder.Flavor) (*Catalog, *Reflector, *edit.CommandContext, *recordingProvider) {
	catalog := NewCatalog(flavor)
	provider := &recordingProvider{}
	return catalog, NewReflector(catalog), edit.NewCommandContext(provider, testLogger()), provider
}

func commandTitles(cmds []edit.Command) []string {
	out := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, cmd.Title())
	}
	return out
}

func strPtr(s string) *string {
	return &s
}
