package schema

import (
	"testing"

	"github.com/spf13/cobra"
)

func newTree() *cobra.Command {
	root := &cobra.Command{Use: "contract"}
	root.PersistentFlags().String("url", "ws://127.0.0.1:9944", "node endpoint")
	call := &cobra.Command{Use: "call", Short: "call a message", Run: func(*cobra.Command, []string) {}}
	call.Flags().StringP("message", "m", "", "message name")
	call.Flags().Uint64("gas", 0, "ref_time limit")
	root.AddCommand(call)
	return root
}

func TestBuildSchemaForCommand(t *testing.T) {
	s, err := Build(newTree(), "call")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "contract call" {
		t.Fatalf("unexpected path: %s", s.Path)
	}
	if len(s.Flags) != 2 || s.Flags[0].Name != "gas" || s.Flags[1].Shorthand != "m" {
		t.Fatalf("unexpected flags: %+v", s.Flags)
	}
	if len(s.GlobalFlags) != 1 || s.GlobalFlags[0].Name != "url" {
		t.Fatalf("unexpected global flags: %+v", s.GlobalFlags)
	}
}

func TestBuildSchemaRoot(t *testing.T) {
	s, err := Build(newTree(), "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(s.Subcommands) != 1 || s.Subcommands[0].Use != "call" {
		t.Fatalf("unexpected subcommands: %+v", s.Subcommands)
	}
}

func TestBuildSchemaUnknownCommand(t *testing.T) {
	if _, err := Build(newTree(), "deploy"); err == nil {
		t.Fatal("expected error for unknown command")
	}
}
