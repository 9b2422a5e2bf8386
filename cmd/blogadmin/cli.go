package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/service"
	"github.com/sakif/markdown-blog/internal/timefmt"
)

// cli is the menu loop. It only prompts and prints; every rule lives in
// service.AdminService.
type cli struct {
	admin *service.AdminService
	in    *bufio.Reader
	out   io.Writer

	// readSecret reads a password without echo. nil means stdin is not a
	// terminal and passwords are read as plain lines.
	readSecret func() (string, error)
}

const menu = `
=== Blog user administration ===
1. List users
2. Create user
3. Delete user
4. Change password
0. Exit
`

// run shows the menu until the user picks 0 or input ends.
func (c *cli) run(ctx context.Context) {
	for {
		fmt.Fprint(c.out, menu)
		choice, err := c.prompt("Choose an option (0-4): ")
		if err != nil {
			fmt.Fprintln(c.out, "\nBye.")
			return
		}

		switch choice {
		case "1":
			c.listUsers(ctx)
		case "2":
			err = c.createUser(ctx)
		case "3":
			err = c.deleteUser(ctx)
		case "4":
			err = c.changePassword(ctx)
		case "0":
			fmt.Fprintln(c.out, "Bye.")
			return
		default:
			fmt.Fprintln(c.out, "Invalid choice, please enter a number from 0 to 4.")
		}

		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out, "\nBye.")
			return
		}
	}
}

// prompt prints label and reads one trimmed line. A final line without a newline
// still counts; io.EOF is returned only when nothing was read.
func (c *cli) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	line, err := c.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *cli) promptSecret(label string) (string, error) {
	if c.readSecret == nil {
		return c.prompt(label)
	}
	fmt.Fprint(c.out, label)
	return c.readSecret()
}

// listUsers prints every account and reports whether there are any.
func (c *cli) listUsers(ctx context.Context) bool {
	users, err := c.admin.ListUsers(ctx)
	if err != nil {
		c.printError(err)
		return false
	}
	if len(users) == 0 {
		fmt.Fprintln(c.out, "No users found.")
		return false
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tCREATED")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, timefmt.Format(u.CreatedAt))
	}
	tw.Flush()
	fmt.Fprintf(c.out, "Total: %d user(s)\n", len(users))
	return true
}

func (c *cli) createUser(ctx context.Context) error {
	username, err := c.prompt("Username: ")
	if err != nil {
		return err
	}
	email, err := c.prompt("Email: ")
	if err != nil {
		return err
	}
	if err := c.admin.ValidateIdentity(ctx, username, email); err != nil {
		c.printError(err)
		return nil
	}

	password, err := c.promptSecret("Password: ")
	if err != nil {
		return err
	}
	confirm, err := c.promptSecret("Confirm password: ")
	if err != nil {
		return err
	}

	user, err := c.admin.CreateUser(ctx, service.NewUserInput{
		Username:        username,
		Email:           email,
		Password:        password,
		ConfirmPassword: confirm,
	})
	if err != nil {
		c.printError(err)
		return nil
	}
	fmt.Fprintf(c.out, "User %q created with id %d.\n", user.Username, user.ID)
	return nil
}

func (c *cli) deleteUser(ctx context.Context) error {
	if !c.listUsers(ctx) {
		return nil
	}
	id, ok, err := c.promptID("User ID to delete: ")
	if err != nil || !ok {
		return err
	}

	user, err := c.admin.GetUser(ctx, id)
	if err != nil {
		c.printError(err)
		return nil
	}

	answer, err := c.prompt(fmt.Sprintf("Delete user %q? Their posts are kept without an author. (y/n): ", user.Username))
	if err != nil {
		return err
	}
	if !strings.EqualFold(answer, "y") {
		fmt.Fprintln(c.out, "Cancelled.")
		return nil
	}

	if err := c.admin.DeleteUser(ctx, id); err != nil {
		c.printError(err)
		return nil
	}
	fmt.Fprintf(c.out, "User %q deleted.\n", user.Username)
	return nil
}

func (c *cli) changePassword(ctx context.Context) error {
	if !c.listUsers(ctx) {
		return nil
	}
	id, ok, err := c.promptID("User ID: ")
	if err != nil || !ok {
		return err
	}

	user, err := c.admin.GetUser(ctx, id)
	if err != nil {
		c.printError(err)
		return nil
	}

	oldPassword, err := c.promptSecret(fmt.Sprintf("Current password of %q: ", user.Username))
	if err != nil {
		return err
	}
	newPassword, err := c.promptSecret("New password: ")
	if err != nil {
		return err
	}
	confirm, err := c.promptSecret("Confirm new password: ")
	if err != nil {
		return err
	}

	if err := c.admin.ChangePassword(ctx, id, oldPassword, newPassword, confirm); err != nil {
		c.printError(err)
		return nil
	}
	fmt.Fprintf(c.out, "Password of %q changed.\n", user.Username)
	return nil
}

// promptID reads a positive user id. ok is false (with a message printed) for
// anything else.
func (c *cli) promptID(label string) (int64, bool, error) {
	raw, err := c.prompt(label)
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintln(c.out, "Invalid user ID.")
		return 0, false, nil
	}
	return id, true, nil
}

func (c *cli) printError(err error) {
	if errors.Is(err, apperror.ErrNotFound) {
		fmt.Fprintln(c.out, "Error: no such user.")
		return
	}
	fmt.Fprintf(c.out, "Error: %s\n", apperror.MessageOf(err, err.Error()))
}
