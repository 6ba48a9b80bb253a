package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/conductor/internal/frontmatter"
	"github.com/zjrosen/conductor/internal/promptstore"
	"github.com/zjrosen/conductor/internal/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Prompt schema maintenance commands",
}

var schemaValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate every prompt file in the workspace against its schema",
	RunE:  runSchemaValidate,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaValidateCmd)
}

// runSchemaValidate runs the same validator the schema-pre/schema hooks use,
// but against every prompt already on disk, for an operator sanity check
// independent of any tool call.
func runSchemaValidate(_ *cobra.Command, _ []string) error {
	prompts, err := promptstore.LoadAll(workspace.PromptsDir())
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}

	failures := 0
	for _, p := range prompts {
		content, err := os.ReadFile(p.Path)
		if err != nil {
			fmt.Printf("%s: io_error: %v\n", p.Path, err)
			failures++
			continue
		}

		doc, err := frontmatter.Parse(content)
		if err != nil {
			fmt.Printf("%s: parse_error: %v\n", p.Path, err)
			failures++
			continue
		}

		sch, ok := schema.ForPath(p.Path)
		if !ok {
			continue
		}

		if errs := sch.Validate(doc.Fields); len(errs) > 0 {
			fmt.Printf("%s: Schema Validation: %s\n", p.Path, strings.Join(errs, "; "))
			failures++
		}
	}

	fmt.Printf("%d prompt(s) checked, %d failed\n", len(prompts), failures)
	if failures > 0 {
		return fmt.Errorf("%d prompt file(s) failed schema validation", failures)
	}
	return nil
}
