package cli

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/matzehuels/geomap/pkg/config"
)

// configCommand creates the config command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the classification table and defaults",
	}
	cmd.AddCommand(c.configInitCommand())
	cmd.AddCommand(c.configShowCommand())
	return cmd
}

// configInitCommand prints the built-in configuration as TOML.
func (c *CLI) configInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Print the built-in configuration as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Default().Encode(os.Stdout)
		},
	}
}

// configShowCommand lists the effective classification table.
func (c *CLI) configShowCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective classification table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := config.Default()
			if path != "" {
				loaded, err := config.Load(path)
				if err != nil {
					return err
				}
				f = loaded
			}
			table, err := f.Table()
			if err != nil {
				return err
			}

			fmt.Println(StyleTitle.Render("Classifiable keys"))
			for i, k := range table.Keys() {
				printDetail("%d. %s", i+1, k)
			}
			fmt.Println()
			fmt.Println(StyleTitle.Render("Categories"))
			names := make([]string, 0, len(f.Categories))
			for name := range f.Categories {
				names = append(names, name)
			}
			if len(names) == 0 {
				for name := range config.Default().Categories {
					names = append(names, name)
				}
			}
			sort.Strings(names)
			for _, name := range names {
				col, _ := table.Color(name)
				printKeyValue(name, swatch(col)+" "+config.FormatColor(col))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "", "TOML config file")
	return cmd
}
