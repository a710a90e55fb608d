package main

import (
	"context"
	"fmt"
)

// resetPassword sets a new password, to be changed by the user on next login.
func (cli *commandLine) resetPassword(email, pwd string) error {
	if err := cli.usrSvc.ResetPassword(context.Background(), email, pwd); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %s reset\n", email)
	return nil
}
