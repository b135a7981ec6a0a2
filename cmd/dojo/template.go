package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hperssn/dojo/internal/domain"
	"github.com/hperssn/dojo/internal/intervals"
)

// templateFile is the YAML layout of an exported interval list.
type templateFile struct {
	Intervals []domain.IntervalDefinition `yaml:"intervals"`
}

func newTemplateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Import or export interval lists as YAML",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export [file]",
		Short: "Write the user's interval list to a file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docs, closeStore, err := a.openUserStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			defs := intervals.NewStore(docs).List(cmd.Context())
			out, err := yaml.Marshal(templateFile{Intervals: defs})
			if err != nil {
				return fmt.Errorf("encode template: %w", err)
			}

			if len(args) == 0 {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return os.WriteFile(args[0], out, 0o644)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Replace the user's interval list with a YAML template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			tmpl, err := readTemplate(f)
			if err != nil {
				return err
			}

			docs, closeStore, err := a.openUserStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			saved, err := intervals.NewStore(docs).Save(cmd.Context(), tmpl.Intervals)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d intervals (%d seconds) for %s\n",
				len(saved), domain.TotalSeconds(saved), a.user)
			return nil
		},
	})

	return cmd
}

func readTemplate(r io.Reader) (templateFile, error) {
	var tmpl templateFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&tmpl); err != nil {
		return templateFile{}, fmt.Errorf("decode template: %w", err)
	}
	for i := range tmpl.Intervals {
		if tmpl.Intervals[i].RepeatCount == 0 {
			tmpl.Intervals[i].RepeatCount = 1
		}
	}
	if err := domain.ValidateAll(tmpl.Intervals); err != nil {
		return templateFile{}, err
	}
	return tmpl, nil
}
