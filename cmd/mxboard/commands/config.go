package commands

import (
	"github.com/mosaicnetworks/mxboard/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	MXBoard     config.Config `mapstructure:",squash"`
	Interactive bool          `mapstructure:"interactive"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		MXBoard:     *config.NewDefaultConfig(),
		Interactive: false,
	}
}
