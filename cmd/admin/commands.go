package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"devshelf/internal/models"
	"devshelf/internal/repository"

	"github.com/spf13/cobra"
)

type repoOpener func() (repository.UserRepository, error)

func newRootCmd(open repoOpener) *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Manage DevShelf administrators and bans",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		flagCmd(open, "promote", "Grant admin rights to a user", func(ctx context.Context, r repository.UserRepository, u *models.User) (string, error) {
			if u.IsAdmin {
				return fmt.Sprintf("User %s (ID: %d) is already an admin", u.Username, u.ID), nil
			}
			if err := r.SetAdmin(ctx, u.ID, true); err != nil {
				return "", err
			}
			return fmt.Sprintf("Promoted %s (ID: %d) to admin", u.Username, u.ID), nil
		}),
		flagCmd(open, "demote", "Revoke admin rights from a user", func(ctx context.Context, r repository.UserRepository, u *models.User) (string, error) {
			if !u.IsAdmin {
				return fmt.Sprintf("User %s (ID: %d) is not an admin", u.Username, u.ID), nil
			}
			if err := r.SetAdmin(ctx, u.ID, false); err != nil {
				return "", err
			}
			return fmt.Sprintf("Demoted %s (ID: %d) from admin", u.Username, u.ID), nil
		}),
		flagCmd(open, "ban", "Suspend a user account", func(ctx context.Context, r repository.UserRepository, u *models.User) (string, error) {
			if u.IsAdmin {
				return "", errors.New("admins cannot be banned, demote first")
			}
			if err := r.SetBanned(ctx, u.ID, true); err != nil {
				return "", err
			}
			return fmt.Sprintf("Banned %s (ID: %d)", u.Username, u.ID), nil
		}),
		flagCmd(open, "unban", "Lift a suspension", func(ctx context.Context, r repository.UserRepository, u *models.User) (string, error) {
			if err := r.SetBanned(ctx, u.ID, false); err != nil {
				return "", err
			}
			return fmt.Sprintf("Unbanned %s (ID: %d)", u.Username, u.ID), nil
		}),
		listAdminsCmd(open),
	)
	return root
}

// flagCmd builds a "<name> <user_id|username>" command that loads the user and applies fn.
func flagCmd(open repoOpener, name, short string, fn func(context.Context, repository.UserRepository, *models.User) (string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <user_id|username>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := open()
			if err != nil {
				return err
			}
			user, err := lookupUser(cmd.Context(), repo, args[0])
			if err != nil {
				return err
			}
			msg, err := fn(cmd.Context(), repo, user)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func listAdminsCmd(open repoOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "list-admins",
		Short: "List all admins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := open()
			if err != nil {
				return err
			}
			admins, err := repo.ListAdmins(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch admins: %w", err)
			}
			if len(admins) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No admins found")
				return nil
			}
			for _, a := range admins {
				fmt.Fprintf(cmd.OutOrStdout(), "ID: %d | Username: %s | Email: %s\n", a.ID, a.Username, a.Email)
			}
			return nil
		},
	}
}

func lookupUser(ctx context.Context, repo repository.UserRepository, ref string) (*models.User, error) {
	var (
		user *models.User
		err  error
	)
	if id, perr := strconv.ParseUint(ref, 10, 64); perr == nil {
		user, err = repo.GetByID(ctx, uint(id))
	} else {
		user, err = repo.GetByUsername(ctx, ref)
	}
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) && appErr.Code == models.CodeNotFound {
			return nil, fmt.Errorf("user %q not found", ref)
		}
		return nil, err
	}
	return user, nil
}
