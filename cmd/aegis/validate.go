package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"modex-hq/aegis/pkg/config"
	"modex-hq/aegis/pkg/routing"
)

var validateFlags struct {
	policyFile string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the configuration file and, when configured, the rollout
policy file, without starting the server.

Every problem is reported, not just the first one, so a broken deployment
can be fixed in one pass.

Examples:
  # Validate the default config
  aegis validate

  # Validate a specific config file
  aegis validate --config /etc/aegis/config.yaml

  # Validate a rollout policy file on its own
  aegis validate --policy rollout.yaml`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.policyFile, "policy", "", "validate a rollout policy file instead of the config")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	if validateFlags.policyFile != "" {
		return validatePolicyFile(validateFlags.policyFile)
	}

	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("✗ Configuration invalid (%d problems):\n", len(verr.Errors))
			for _, fe := range verr.Errors {
				fmt.Printf("  - %s: %s\n", fe.Field, fe.Message)
			}
			return fmt.Errorf("configuration validation failed")
		}
		return err
	}

	fmt.Println("✓ Configuration valid")

	if cfg.Routing.PolicyFile != "" {
		if err := validatePolicyFile(cfg.Routing.PolicyFile); err != nil {
			return err
		}
	}
	return nil
}

func validatePolicyFile(path string) error {
	pf, err := config.LoadPolicyFile(path)
	if err != nil {
		return err
	}
	if _, err := routing.NewStore(routing.WeightsFromConfig(pf.Policy)); err != nil {
		fmt.Printf("✗ Policy file invalid: %v\n", err)
		return fmt.Errorf("policy validation failed")
	}
	fmt.Printf("✓ Policy file valid: %s\n", path)
	return nil
}
