package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db        *sql.DB
	usrSvc    *user.Service
	proposals proposal.Repository
	validate  *validator.Validate
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  addprofile -id ID -name NAME -role student|teacher [-email EMAIL] - create a profile")
	fmt.Fprintln(cli.out, "  rejections -student ID - list the projects a student was rejected from")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addProfileCmd := flag.NewFlagSet("addprofile", flag.ContinueOnError)
	addProfileCmd.SetOutput(cli.out)
	addProfileID := addProfileCmd.String("id", "", "The identity provider's user id.")
	addProfileName := addProfileCmd.String("name", "", "The user's display name.")
	addProfileRole := addProfileCmd.String("role", "", "student or teacher.")
	addProfileEmail := addProfileCmd.String("email", "", "The user's email (optional).")

	rejectionsCmd := flag.NewFlagSet("rejections", flag.ContinueOnError)
	rejectionsCmd.SetOutput(cli.out)
	rejectionsStudent := rejectionsCmd.String("student", "", "The student's id.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "addprofile":
		if err := addProfileCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addProfileID == "" || *addProfileRole == "" {
			addProfileCmd.Usage()
			return errHelp
		}
		return cli.addProfile(user.NewUser{
			ID:    *addProfileID,
			Name:  *addProfileName,
			Email: *addProfileEmail,
			Role:  *addProfileRole,
		})
	case "rejections":
		if err := rejectionsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rejectionsStudent == "" {
			rejectionsCmd.Usage()
			return errHelp
		}
		return cli.listRejections(*rejectionsStudent)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) addProfile(nu user.NewUser) error {
	ctx := context.Background()
	if err := nu.Validate(cli.usrSvc.NewContext(ctx, cli.validate)); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "profile %s created: %s (%s)\n", usr.ID, usr.DisplayName(), usr.Role)
	return nil
}

func (cli *commandLine) listRejections(studentID string) error {
	rejs, err := cli.proposals.QueryRejections(context.Background(), studentID)
	if err != nil {
		return err
	}
	if len(rejs) == 0 {
		fmt.Fprintf(cli.out, "no rejections for student %s\n", studentID)
		return nil
	}
	for _, rej := range rejs {
		fmt.Fprintf(cli.out, "%s\t%s\t%s\n", rej.ProjectID, rej.ProposalID, rej.RejectedAt.Format(time.RFC3339))
	}
	return nil
}
