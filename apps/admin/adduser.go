package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/ushauri/core/user"
)

func (cli *commandLine) addUser(name, email, role, pwd string) error {
	nu := user.NewUser{
		Name:            name,
		Email:           email,
		Role:            role,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}

	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	fmt.Fprintf(cli.out, "user %s (%s) created\n", usr.Email, usr.Role)
	return nil
}
