package script

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/Ramsey-B/fern/pkg/edit"
	"github.com/Ramsey-B/fern/pkg/schema"
)

type createTableStep struct {
	Schema   string              `yaml:"schema"`
	Name     string              `yaml:"name"`
	Columns  []schema.ColumnSpec `yaml:"columns"`
	Existing bool                `yaml:"existing"`
}

type addColumnStep struct {
	Table  string            `yaml:"table"`
	Column schema.ColumnSpec `yaml:"column"`
}

type alterColumnStep struct {
	Table       string  `yaml:"table"`
	Column      string  `yaml:"column"`
	Name        *string `yaml:"name"`
	Type        *string `yaml:"type"`
	Nullable    *bool   `yaml:"nullable"`
	Default     *string `yaml:"default"`
	DropDefault bool    `yaml:"drop_default"`
	Comment     *string `yaml:"comment"`
}

type columnRef struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

type renameTableStep struct {
	Table string `yaml:"table"`
	To    string `yaml:"to"`
}

type tableRef struct {
	Table string `yaml:"table"`
}

type insertRowStep struct {
	Table    string         `yaml:"table"`
	As       string         `yaml:"as"`
	Values   map[string]any `yaml:"values"`
	Existing bool           `yaml:"existing"`
}

type updateRowStep struct {
	Row    string         `yaml:"row"`
	Values map[string]any `yaml:"values"`
}

type rowRef struct {
	Row string `yaml:"row"`
}

type saveStep struct {
	ExpectError string `yaml:"expect_error"`
}

type blockStep struct {
	Steps []map[string]yaml.Node `yaml:"steps"`
}

type expectStep struct {
	Dirty         *bool    `yaml:"dirty"`
	Undo          *string  `yaml:"undo"`
	Redo          *string  `yaml:"redo"`
	FinalCommands []string `yaml:"final_commands"`
	Tables        []string `yaml:"tables"`
}

// decode fills params from a step body. Scalar bodies such as `undo: true`
// carry no parameters.
func decode(node yaml.Node, params any) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	return node.Decode(params)
}

// executeStep executes a single script step
func executeStep(ctx context.Context, env *Env, step map[string]yaml.Node, label string) error {
	if len(step) == 0 {
		return errors.New("empty step")
	}
	if len(step) > 1 {
		keys := make([]string, 0, len(step))
		for k := range step {
			keys = append(keys, k)
		}
		return errors.Errorf("step has multiple keys (expected one): %s", strings.Join(keys, ", "))
	}

	var stepType string
	var node yaml.Node
	for k, v := range step {
		stepType, node = k, v
	}

	if env.verbose {
		fmt.Fprintf(env.out, "  [%s] %s\n", label, stepType)
	}

	switch stepType {
	case "create_table":
		var p createTableStep
		if err := decode(node, &p); err != nil {
			return err
		}
		return env.createTable(p)
	case "add_column":
		var p addColumnStep
		if err := decode(node, &p); err != nil {
			return err
		}
		t, err := env.table(p.Table)
		if err != nil {
			return err
		}
		env.execute(schema.NewAddColumn(t.NewColumn(p.Column)))
		return nil
	case "alter_column":
		var p alterColumnStep
		if err := decode(node, &p); err != nil {
			return err
		}
		return env.alterColumn(p)
	case "drop_column":
		var p columnRef
		if err := decode(node, &p); err != nil {
			return err
		}
		col, err := env.column(p.Table, p.Column)
		if err != nil {
			return err
		}
		env.execute(schema.NewDropColumn(col))
		return nil
	case "rename_table":
		var p renameTableStep
		if err := decode(node, &p); err != nil {
			return err
		}
		t, err := env.table(p.Table)
		if err != nil {
			return err
		}
		env.execute(schema.NewRenameTable(t, p.To))
		return nil
	case "drop_table":
		var p tableRef
		if err := decode(node, &p); err != nil {
			return err
		}
		t, err := env.table(p.Table)
		if err != nil {
			return err
		}
		env.execute(schema.NewDropTable(t))
		return nil
	case "insert_row":
		var p insertRowStep
		if err := decode(node, &p); err != nil {
			return err
		}
		return env.insertRow(p)
	case "update_row":
		var p updateRowStep
		if err := decode(node, &p); err != nil {
			return err
		}
		row, err := env.row(p.Row)
		if err != nil {
			return err
		}
		env.execute(schema.NewUpdateRow(row, p.Values))
		return nil
	case "delete_row":
		var p rowRef
		if err := decode(node, &p); err != nil {
			return err
		}
		row, err := env.row(p.Row)
		if err != nil {
			return err
		}
		env.execute(schema.NewDeleteRow(row))
		return nil
	case "block":
		var p blockStep
		if err := decode(node, &p); err != nil {
			return err
		}
		env.Context.StartCommandBlock()
		defer env.Context.EndCommandBlock()
		for i, inner := range p.Steps {
			if err := executeStep(ctx, env, inner, fmt.Sprintf("%s.block[%d]", label, i)); err != nil {
				return err
			}
		}
		return nil
	case "undo":
		return env.Context.UndoCommand()
	case "redo":
		return env.Context.RedoCommand()
	case "reset":
		return env.Context.ResetChanges()
	case "save":
		var p saveStep
		if err := decode(node, &p); err != nil {
			return err
		}
		return env.save(ctx, p)
	case "expect":
		var p expectStep
		if err := decode(node, &p); err != nil {
			return err
		}
		return env.expect(p)
	default:
		return errors.Errorf("unknown step type: %s", stepType)
	}
}

func (env *Env) execute(cmd edit.Command) {
	env.Context.AddCommand(cmd, env.Reflector, true)
}

func (env *Env) table(name string) (*schema.Table, error) {
	t := env.Catalog.FindTable(name)
	if t == nil {
		return nil, errors.Errorf("unknown table %q", name)
	}
	return t, nil
}

func (env *Env) column(table, name string) (*schema.Column, error) {
	t, err := env.table(table)
	if err != nil {
		return nil, err
	}
	col := t.FindColumn(name)
	if col == nil {
		return nil, errors.Errorf("unknown column %s.%s", table, name)
	}
	return col, nil
}

func (env *Env) row(alias string) (*schema.Row, error) {
	row, ok := env.rows[alias]
	if !ok {
		return nil, errors.Errorf("unknown row %q", alias)
	}
	return row, nil
}

func (env *Env) createTable(p createTableStep) error {
	if env.Catalog.FindTable(p.Name) != nil {
		return errors.Errorf("table %q already exists", p.Name)
	}
	if p.Existing {
		env.Catalog.AttachTable(p.Schema, p.Name, p.Columns...)
		return nil
	}
	env.execute(schema.NewCreateTable(env.Catalog.NewTable(p.Schema, p.Name, p.Columns...)))
	return nil
}

func (env *Env) alterColumn(p alterColumnStep) error {
	col, err := env.column(p.Table, p.Column)
	if err != nil {
		return err
	}

	var spec schema.ColumnSpec
	env.Catalog.View(func() {
		spec = col.Spec
	})
	if p.Name != nil {
		spec.Name = *p.Name
	}
	if p.Type != nil {
		spec.Type = *p.Type
	}
	if p.Nullable != nil {
		spec.Nullable = *p.Nullable
	}
	if p.DropDefault {
		spec.Default = nil
	} else if p.Default != nil {
		spec.Default = p.Default
	}
	if p.Comment != nil {
		spec.Comment = *p.Comment
	}
	env.execute(schema.NewAlterColumn(col, spec))
	return nil
}

func (env *Env) insertRow(p insertRowStep) error {
	t, err := env.table(p.Table)
	if err != nil {
		return err
	}
	if p.As != "" {
		if _, dup := env.rows[p.As]; dup {
			return errors.Errorf("row alias %q already used", p.As)
		}
	}

	var row *schema.Row
	if p.Existing {
		row = t.AttachRow(p.Values)
	} else {
		row = t.NewRow(p.Values)
		env.execute(schema.NewInsertRow(row))
	}
	if p.As != "" {
		env.rows[p.As] = row
	}
	return nil
}

func (env *Env) save(ctx context.Context, p saveStep) error {
	err := env.Context.SaveChanges(ctx)
	if p.ExpectError == "" {
		return err
	}
	if err == nil {
		return errors.Errorf("expected save to fail with %q", p.ExpectError)
	}
	if !strings.Contains(err.Error(), p.ExpectError) {
		return errors.Errorf("expected save error containing %q, got %q", p.ExpectError, err.Error())
	}
	return nil
}

func (env *Env) expect(p expectStep) error {
	cc := env.Context
	if p.Dirty != nil && cc.IsDirty() != *p.Dirty {
		return errors.Errorf("expected dirty=%t", *p.Dirty)
	}
	if p.Undo != nil {
		if got := title(cc.GetUndoCommand()); got != *p.Undo {
			return errors.Errorf("expected undo %q, got %q", *p.Undo, got)
		}
	}
	if p.Redo != nil {
		if got := title(cc.GetRedoCommand()); got != *p.Redo {
			return errors.Errorf("expected redo %q, got %q", *p.Redo, got)
		}
	}
	if p.FinalCommands != nil {
		var got []string
		for _, cmd := range cc.FinalCommands() {
			got = append(got, cmd.Title())
		}
		if strings.Join(got, "\n") != strings.Join(p.FinalCommands, "\n") {
			return errors.Errorf("expected final commands %q, got %q", p.FinalCommands, got)
		}
	}
	if p.Tables != nil {
		var got []string
		for _, t := range env.Catalog.Tables() {
			got = append(got, t.Name)
		}
		if strings.Join(got, "\n") != strings.Join(p.Tables, "\n") {
			return errors.Errorf("expected tables %q, got %q", p.Tables, got)
		}
	}
	return nil
}

func title(cmd edit.Command) string {
	if cmd == nil {
		return ""
	}
	return cmd.Title()
}
