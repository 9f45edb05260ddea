package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Load and validate the config file, then exit",
	Run:   runCheckConfig,
}

func init() {
	rootCmd.AddCommand(checkConfigCmd)
}

func runCheckConfig(cmd *cobra.Command, args []string) {
	cfg, closeLog := loadConfig()
	defer closeLog()

	for _, c := range cfg.Chains {
		fmt.Printf("%s (%s): %d checks, round every %s\n", c.DisplayName(), c.Name, len(c.Checks), c.RoundInterval)
	}
	fmt.Println("config OK")
}
