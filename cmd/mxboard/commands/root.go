package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for MXBoard
var RootCmd = &cobra.Command{
	Use:              "mxboard",
	Short:            "replicated message board",
	TraverseChildren: true,
}
