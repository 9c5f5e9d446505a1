package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/rulinstat/internal/model"
)

// dictCmd represents the dict command
var dictCmd = &cobra.Command{
	Use:   "dict",
	Short: "Inspect or export the entity dictionary",
	Long: `The entity dictionary maps every spelling variant of a place or character
to its normalized name. Places may carry WGS84 coordinates for the map.

Use a custom dictionary with --dict or analysis.dictionary in the config file.`,
}

var dictShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active dictionary as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		var file model.DictionaryFile
		if cfg.Analysis.Dictionary != "" {
			// Validate before printing
			if _, err := model.LoadDictionary(cfg.Analysis.Dictionary); err != nil {
				return err
			}
			data, err := os.ReadFile(cfg.Analysis.Dictionary)
			if err != nil {
				return fmt.Errorf("read dictionary: %w", err)
			}
			if err := yaml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("parse dictionary: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Dictionary file: %s\n\n", cfg.Analysis.Dictionary)
		} else {
			file = model.DefaultDictionaryFile()
			fmt.Fprintf(os.Stderr, "Built-in dictionary\n\n")
		}

		out, err := yaml.Marshal(file)
		if err != nil {
			return fmt.Errorf("error marshaling dictionary: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var dictInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the built-in dictionary to a YAML file for editing",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "dictionary.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := writeDefaultDictionary(path); err != nil {
			return err
		}

		fmt.Printf("✓ Created dictionary: %s\n", path)
		fmt.Printf("\nTo use it:\n")
		fmt.Printf("  rulinstat analyze --dict %s\n\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dictCmd)
	dictCmd.AddCommand(dictShowCmd)
	dictCmd.AddCommand(dictInitCmd)

	dictShowCmd.Flags().String("dict", "", "entity dictionary YAML (default: built-in table)")
	bindFlag(dictShowCmd, "dict", "analysis.dictionary")
}

// writeDefaultDictionary writes the built-in table, refusing to overwrite
func writeDefaultDictionary(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("dictionary file already exists: %s", path)
	}

	out, err := yaml.Marshal(model.DefaultDictionaryFile())
	if err != nil {
		return fmt.Errorf("error marshaling dictionary: %w", err)
	}

	header := "# Rulinstat entity dictionary\n# Each entry maps spelling variants to one normalized name.\n\n"
	if err := os.WriteFile(path, append([]byte(header), out...), 0644); err != nil {
		return fmt.Errorf("write dictionary: %w", err)
	}
	return nil
}
