package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/escolarhq/escolar/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sqlx.DB
	usrRepo user.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - apply pending database migrations")
	fmt.Println("  createsuperuser -email EMAIL -name NAME - create an admin user")
	fmt.Println("  adduser -email EMAIL -name NAME -role ROLE [-course ID] - create a user")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRole := addUserCmd.String("role", "", "One of: admin, teacher, student, preceptor, father.")
	addUserCourse := addUserCmd.Int("course", 0, "The student's course id.")

	superUserCmd := flag.NewFlagSet("createsuperuser", flag.ExitOnError)
	superUserEmail := superUserCmd.String("email", "", "The admin's email. The password will be prompted next.")
	superUserName := superUserCmd.String("name", "", "The admin's full name.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "createsuperuser":
		if err := superUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *superUserEmail == "" || *superUserName == "" {
			superUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(superUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*superUserEmail, *superUserName, pwd, user.RoleAdmin, 0)
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		role, err := user.ParseRole(*addUserRole)
		if *addUserEmail == "" || *addUserName == "" || err != nil {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(addUserCmd)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserEmail, *addUserName, pwd, role, *addUserCourse)
	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword(cmd *flag.FlagSet) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}
