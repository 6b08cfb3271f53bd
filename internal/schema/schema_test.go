package schema

import (
	"testing"

	"github.com/spf13/cobra"
)

func testRoot() *cobra.Command {
	root := &cobra.Command{Use: "oftbridge"}
	routes := &cobra.Command{Use: "routes", Short: "route commands"}
	inspect := &cobra.Command{Use: "inspect", Short: "inspect a route", Aliases: []string{"show"}}
	inspect.Flags().String("direction", "", "Transfer direction")
	inspect.Flags().Bool("debug-peer", false, "hidden")
	_ = inspect.Flags().MarkHidden("debug-peer")
	routes.AddCommand(inspect)
	send := &cobra.Command{
		Use:   "send",
		Short: "bridge tokens",
		Annotations: map[string]string{
			AnnotationMutates: "true",
			AnnotationWallet:  "true",
		},
	}
	root.AddCommand(routes, send)
	return root
}

func TestBuildSchema(t *testing.T) {
	s, err := Build(testRoot(), "routes inspect")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if s.Path != "oftbridge routes inspect" {
		t.Fatalf("unexpected path: %s", s.Path)
	}
	if len(s.Flags) != 1 || s.Flags[0].Name != "direction" {
		t.Fatalf("unexpected flags: %+v", s.Flags)
	}
	if s.Mutates || s.RequiresWallet {
		t.Fatalf("read-only command reported as mutating: %+v", s)
	}
}

func TestBuildSchemaAliasAndAnnotations(t *testing.T) {
	s, err := Build(testRoot(), "routes show")
	if err != nil {
		t.Fatalf("alias lookup failed: %v", err)
	}
	if s.Path != "oftbridge routes inspect" {
		t.Fatalf("unexpected path: %s", s.Path)
	}
	send, err := Build(testRoot(), "send")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !send.Mutates || !send.RequiresWallet {
		t.Fatalf("expected annotations on send: %+v", send)
	}
}

func TestBuildSchemaUnknownCommand(t *testing.T) {
	if _, err := Build(testRoot(), "routes delete"); err == nil {
		t.Fatal("expected unknown command error")
	}
}

func TestBuildSchemaRoot(t *testing.T) {
	s, err := Build(testRoot(), "")
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if len(s.Subcommands) != 2 {
		t.Fatalf("expected two subcommands, got %+v", s.Subcommands)
	}
}
