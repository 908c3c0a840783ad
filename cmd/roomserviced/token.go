package main

import (
	"fmt"
	"strings"

	"roomservice-agent/internal/keyring"
)

type TokenSetCmd struct {
	Token string `arg:"" help:"Staff access token."`
}

func (c *TokenSetCmd) Run(ctx *Context) error {
	token := strings.TrimSpace(c.Token)
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}
	if err := keyring.SetStaffToken(token); err != nil {
		return err
	}
	fmt.Println("staff token saved to keyring")
	return nil
}

type TokenDeleteCmd struct{}

func (c *TokenDeleteCmd) Run(ctx *Context) error {
	if err := keyring.DeleteStaffToken(); err != nil {
		return err
	}
	fmt.Println("staff token removed from keyring")
	return nil
}
