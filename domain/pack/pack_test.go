package pack_test

import (
	"context"
	"errors"
	"testing"

	"github.com/felixgeelhaar/sysagent/domain/pack"
	"github.com/felixgeelhaar/sysagent/domain/tool"
	"github.com/felixgeelhaar/sysagent/infrastructure/storage/memory"
)

func testTool(name string) tool.Tool {
	return tool.NewBuilder(name).
		WithDescription("test tool").
		WithHandler(func(context.Context, string) (tool.Result, error) {
			return tool.NewResult(name), nil
		}).
		MustBuild()
}

func TestPack_ToolNames(t *testing.T) {
	t.Parallel()

	t.Run("returns empty slice for pack with no tools", func(t *testing.T) {
		t.Parallel()

		p := &pack.Pack{}
		if names := p.ToolNames(); len(names) != 0 {
			t.Errorf("ToolNames() len = %d, want 0", len(names))
		}
	})

	t.Run("keeps tool order", func(t *testing.T) {
		t.Parallel()

		p := pack.NewBuilder("ops").
			AddTool(testTool("get_platform_info")).
			AddTools(testTool("run_commands"), testTool("duckduckgo_results_json")).
			Build()

		want := []string{"get_platform_info", "run_commands", "duckduckgo_results_json"}
		got := p.ToolNames()
		if len(got) != len(want) {
			t.Fatalf("ToolNames() len = %d, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("ToolNames()[%d] = %s, want %s", i, got[i], want[i])
			}
		}
	})
}

func TestPack_GetTool(t *testing.T) {
	t.Parallel()

	p := pack.NewBuilder("ops").
		WithDescription("operations").
		WithVersion("1.0.0").
		AddTool(testTool("run_commands")).
		Build()

	if _, ok := p.GetTool("run_commands"); !ok {
		t.Error("GetTool(run_commands) not found")
	}
	if _, ok := p.GetTool("Run_Commands"); ok {
		t.Error("GetTool() should match names exactly")
	}
	if p.Description != "operations" || p.Version != "1.0.0" {
		t.Errorf("pack = %+v", p)
	}
}

func TestInstall(t *testing.T) {
	t.Parallel()

	t.Run("registers tools from all packs", func(t *testing.T) {
		t.Parallel()

		reg, err := memory.NewToolRegistry()
		if err != nil {
			t.Fatalf("NewToolRegistry() error = %v", err)
		}
		a := pack.NewBuilder("a").AddTool(testTool("one")).Build()
		b := pack.NewBuilder("b").AddTools(testTool("two"), testTool("three")).Build()

		if err := pack.Install(reg, a, b); err != nil {
			t.Fatalf("Install() error = %v", err)
		}
		names := reg.Names()
		if len(names) != 3 || names[0] != "one" || names[2] != "three" {
			t.Errorf("Names() = %v", names)
		}
	})

	t.Run("rejects duplicates across packs", func(t *testing.T) {
		t.Parallel()

		reg, _ := memory.NewToolRegistry()
		a := pack.NewBuilder("a").AddTool(testTool("dup")).Build()
		b := pack.NewBuilder("b").AddTool(testTool("dup")).Build()

		if err := pack.Install(reg, a, b); !errors.Is(err, tool.ErrToolExists) {
			t.Errorf("Install() error = %v, want ErrToolExists", err)
		}
	})

	t.Run("rejects unnamed pack", func(t *testing.T) {
		t.Parallel()

		reg, _ := memory.NewToolRegistry()
		if err := pack.Install(reg, &pack.Pack{}); !errors.Is(err, pack.ErrInvalidPack) {
			t.Errorf("Install() error = %v, want ErrInvalidPack", err)
		}
	})
}
