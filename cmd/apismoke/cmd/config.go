package cmd

import (
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/apismoke/internal/observability"
)

const redacted = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for managing apismoke configuration.`,
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the effective configuration",
	Long: `Dump the effective configuration in YAML format, after the config file,
environment variables and flags have been applied. Secrets are masked
unless --show-secrets is given.

Redirect the output to create a configuration template:

  apismoke config dump > apismoke.yaml

Configuration can be set via:
  - Config file (apismoke.yaml in ., $HOME/.config/apismoke, /etc/apismoke)
  - Environment variables (APISMOKE_TARGET_BASE_URL, APISMOKE_CREDENTIALS_EMAIL, etc.)
  - Command-line flags (for some options)

Environment variables use the APISMOKE_ prefix and underscores for nesting.
Example: target.base_url -> APISMOKE_TARGET_BASE_URL`,
	Args: cobra.NoArgs,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)

	configDumpCmd.Flags().Bool("show-secrets", false, "print passwords and tokens in clear text")
}

// toMap converts a struct to a map keyed by mapstructure tags, formatting
// durations for human readability and masking sensitive keys.
func toMap(v any, mask bool) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Tag.Get("yaml")
		}
		if key == "" {
			key = fieldType.Name
		}

		result[key] = toValue(key, field, mask)
	}
	return result
}

func toValue(key string, field reflect.Value, mask bool) any {
	if d, ok := field.Interface().(time.Duration); ok {
		return d.String()
	}

	switch field.Kind() {
	case reflect.Struct:
		return toMap(field.Interface(), mask)
	case reflect.Slice:
		items := make([]any, 0, field.Len())
		for i := 0; i < field.Len(); i++ {
			items = append(items, toValue(key, field.Index(i), mask))
		}
		return items
	case reflect.String:
		if mask && field.String() != "" && slices.Contains(observability.SensitiveKeys, key) {
			return redacted
		}
		return field.String()
	default:
		return field.Interface()
	}
}

func runConfigDump(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	showSecrets, _ := cmd.Flags().GetBool("show-secrets")

	yamlData, err := yaml.Marshal(toMap(cfg, !showSecrets))
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "# apismoke Configuration File")
	fmt.Fprintln(out, "# ============================")
	fmt.Fprintln(out, "#")
	fmt.Fprintln(out, "# Duration format: 500ms, 30s, 5m, 1h")
	fmt.Fprintln(out, "#")
	fmt.Fprintln(out, "# Environment variable overrides:")
	fmt.Fprintln(out, "#   APISMOKE_TARGET_BASE_URL (or REACT_APP_BACKEND_URL)")
	fmt.Fprintln(out, "#   APISMOKE_CREDENTIALS_EMAIL, APISMOKE_CREDENTIALS_PASSWORD")
	fmt.Fprintln(out, "#   APISMOKE_LOGGING_LEVEL, APISMOKE_LOGGING_FORMAT")
	fmt.Fprintln(out, "#   etc.")
	fmt.Fprintln(out, "#")
	fmt.Fprintln(out)
	fmt.Fprint(out, string(yamlData))

	return nil
}
