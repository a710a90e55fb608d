package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/trezcool/ushauri/core/rostersync"
	"github.com/trezcool/ushauri/core/user"
)

const cliTriggeredBy = "admin-cli"

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errPwdMismatch = errors.New("passwords do not match")
	errSyncFailed  = errors.New("sync run failed")
)

type commandLine struct {
	db         *sqlx.DB
	usrSvc     user.Service
	syncSvc    rostersync.Service
	validate   *validator.Validate
	translator ut.Translator
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL -name NAME [-role ROLE] - create a user")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  sync [-action ACTION] [-students=false] [-staff=false] - synchronize the college roster")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", user.RoleAdmin, "The user's role: "+strings.Join(user.AllRoles, ", "))

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	syncCmd := flag.NewFlagSet("sync", flag.ExitOnError)
	syncAction := syncCmd.String("action", rostersync.ActionSyncAll, "One of: sync_all, sync_students, sync_staff")
	syncStudents := syncCmd.Bool("students", true, "Sync the students.")
	syncStaff := syncCmd.Bool("staff", true, "Sync the staff.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(true /* confirm */)
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, *addUserRole, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(false /* confirm */)
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "sync":
		if err := syncCmd.Parse(args[2:]); err != nil {
			return err
		}
		req := rostersync.Request{Action: *syncAction}
		// only the explicitly set flags restrict the action
		syncCmd.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "students":
				req.SyncStudents = syncStudents
			case "staff":
				req.SyncStaff = syncStaff
			}
		})
		return cli.sync(context.Background(), req)

	default:
		cli.printUsage()
		return errHelp
	}
}

// promptPassword reads a password from the terminal, twice when `confirm`.
func (cli *commandLine) promptPassword(confirm bool) (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if !confirm || len(pwd) == 0 {
		return string(pwd), nil
	}

	fmt.Fprint(cli.out, "Confirm password:")
	pwdConfirm, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if string(pwdConfirm) != string(pwd) {
		return "", errPwdMismatch
	}
	return string(pwd), nil
}

// formatError renders validation errors one field per line.
func (cli *commandLine) formatError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	lines := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		lines = append(lines, fe.Field()+": "+fe.Translate(cli.translator))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}
