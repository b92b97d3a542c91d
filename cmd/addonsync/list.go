// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bedrock-tools/addonsync/internal/world"
	"github.com/bedrock-tools/addonsync/pkg/manifest"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// listedPack is one registry entry joined with its installed folder.
type listedPack struct {
	Category  string `json:"category" yaml:"category"`
	PackID    string `json:"pack_id" yaml:"pack_id"`
	Version   string `json:"version" yaml:"version"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	Folder    string `json:"folder,omitempty" yaml:"folder,omitempty"`
	Installed bool   `json:"installed" yaml:"installed"`
}

func newListCommand(app *App, flags *rootFlagValues) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the packs registered in the world",
		Long: `List every entry of the world's behavior and resource pack registries
together with the installed folder that carries it. Nothing is modified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch format {
			case formatTable, formatJSON, formatYAML:
			default:
				return fmt.Errorf("invalid --format %q (valid: table, json, yaml)", format)
			}

			s, err := app.openSession(cmd.Context(), flags)
			if err != nil {
				return app.reportError(cmd, err, flags.verbose)
			}
			packs, err := listPacks(s)
			if err != nil {
				return app.reportError(cmd, err, flags.verbose)
			}
			return writePacks(app.stdout, format, packs)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", formatTable, "output format: table, json or yaml")
	return cmd
}

// listPacks reads the registries and installed folders of s's world.
func listPacks(s *session) ([]listedPack, error) {
	registries, err := s.layout.LoadRegistries(s.logger)
	if err != nil {
		return nil, err
	}

	packs := []listedPack{}
	for _, c := range manifest.Categories() {
		reg, err := registries.For(c)
		if err != nil {
			return nil, err
		}
		installed, err := s.layout.Installed(c)
		if err != nil {
			return nil, err
		}
		byID := make(map[string]world.InstalledPack, len(installed))
		for _, p := range installed {
			if p.Readable() {
				byID[p.ID().Key()] = p
			}
		}

		for _, e := range reg.Entries() {
			lp := listedPack{
				Category: c.String(),
				PackID:   e.PackID.String(),
				Version:  e.Version.String(),
			}
			if p, ok := byID[e.PackID.Key()]; ok {
				lp.Installed = true
				lp.Folder = filepath.Base(p.Dir)
				lp.Name = p.Result.Manifest.DisplayName()
			}
			packs = append(packs, lp)
		}
	}
	return packs, nil
}

func writePacks(w io.Writer, format string, packs []listedPack) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(packs)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(packs); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(packs) == 0 {
		_, err := fmt.Fprintln(w, SubtitleStyle.Render("no packs registered"))
		return err
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(SubtitleStyle).
		Headers("CATEGORY", "NAME", "VERSION", "FOLDER", "PACK ID").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})
	for _, p := range packs {
		folder := p.Folder
		if !p.Installed {
			folder = WarningStyle.Render("(missing)")
		}
		t.Row(p.Category, p.Name, p.Version, folder, p.PackID)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
