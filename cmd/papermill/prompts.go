package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papermill/papermill/internal/prompts"
	"github.com/papermill/papermill/internal/prompts/blog"
	"github.com/papermill/papermill/internal/prompts/polish"
	"github.com/papermill/papermill/internal/prompts/sections"
	"github.com/papermill/papermill/internal/prompts/slides"
	"github.com/papermill/papermill/internal/prompts/translate"
	"github.com/papermill/papermill/internal/prompts/triage"
)

var promptsShowKey string

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "List the embedded stage prompts",
	Long: `Prompts lists every prompt template the pipeline stages embed, with
its template variables and content hash. Use --show to print a single
prompt's full text.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		r := stagePrompts()

		if promptsShowKey != "" {
			p, err := r.Get(promptsShowKey)
			if err != nil {
				return err
			}
			fmt.Print(p.Text)
			return nil
		}

		for _, p := range r.List() {
			fmt.Printf("%-34s %s\n", p.Key, shortHash(p.Hash))
			fmt.Printf("  %s\n", p.Description)
			if len(p.Variables) > 0 {
				fmt.Printf("  variables: %s\n", strings.Join(p.Variables, ", "))
			}
		}
		return nil
	},
}

func init() {
	promptsCmd.Flags().StringVar(&promptsShowKey, "show", "", "print the full text of one prompt key")
}

// stagePrompts builds the resolver with every stage's embedded prompts
// registered.
func stagePrompts() *prompts.Resolver {
	r := prompts.NewResolver(nil)
	translate.RegisterPrompts(r)
	polish.RegisterPrompts(r)
	sections.RegisterPrompts(r)
	blog.RegisterPrompts(r)
	slides.RegisterPrompts(r)
	triage.RegisterPrompts(r)
	return r
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
