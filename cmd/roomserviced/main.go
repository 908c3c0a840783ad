package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

var CLI struct {
	Version kong.VersionFlag
	Config  string `help:"Config file path." type:"path" env:"CONFIG_PATH" default:"./config/config.yaml"`

	Run   RunCmd `cmd:"" help:"Run the agent." default:"1"`
	Token struct {
		Set    TokenSetCmd    `cmd:"" help:"Store the staff access token in the OS keyring."`
		Delete TokenDeleteCmd `cmd:"" help:"Remove the staff access token from the OS keyring."`
	} `cmd:"" help:"Manage the staff access token."`
}

// Context is passed to every command.
type Context struct {
	ConfigPath string
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("roomserviced"),
		kong.Description("Room service agent for kiosk devices and staff dashboards"),
		kong.UsageOnError(),
		kong.Vars{"version": "v0.1.0"},
	)

	if err := ctx.Run(&Context{ConfigPath: CLI.Config}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
