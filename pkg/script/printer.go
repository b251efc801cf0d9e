package script

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/Ramsey-B/fern/pkg/edit"
)

// PrintingProvider writes statements instead of executing them.
type PrintingProvider struct {
	mu  sync.Mutex
	out io.Writer
}

func NewPrintingProvider(out io.Writer) *PrintingProvider {
	return &PrintingProvider{out: out}
}

func (p *PrintingProvider) IsConnected(ctx context.Context) bool {
	return true
}

func (p *PrintingProvider) OpenContext(ctx context.Context, purpose edit.Purpose, description string) (edit.PersistContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "-- %s\n", description)
	return &printingContext{provider: p}, nil
}

type printingContext struct {
	provider *PrintingProvider
}

func (c *printingContext) Exec(ctx context.Context, statement string, args ...any) error {
	p := c.provider
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(args) == 0 {
		fmt.Fprintf(p.out, "%s;\n", statement)
		return nil
	}
	fmt.Fprintf(p.out, "%s; -- %v\n", statement, args)
	return nil
}

func (c *printingContext) Close(ctx context.Context) error {
	return nil
}
