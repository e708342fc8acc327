package main

import (
	"time"

	"github.com/google/uuid"

	"github.com/escolarapp/escolar/core"
	"github.com/escolarapp/escolar/core/account"
)

// addAdmin updates or creates an admin account.
func (cli *commandLine) addAdmin(name, uname, email, pwd string) error {
	name = core.CleanString(name)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	now := time.Now().UTC()
	acct, err := cli.acctRepo.GetAccount(account.GetFilter{UsernameOrEmail: email})
	if err != nil {
		if err != account.ErrNotFound {
			return err
		}
		if uname == "" {
			if uname, err = account.DeriveHandleFromName(name); err != nil {
				return err
			}
			if uname, err = account.ResolveHandleConflict(uname, cli.acctRepo.UsernameTaken); err != nil {
				return err
			}
		}
		acct = account.Account{
			ID:        uuid.New().String(),
			Name:      name,
			Username:  uname,
			Email:     email,
			CreatedAt: now,
		}
	}
	acct.Role = account.RoleAdmin
	acct.UpdatedAt = now
	acct.SetActive(true)
	if err := acct.SetPassword(pwd); err != nil {
		return err
	}

	if acct.CreatedAt.Equal(now) {
		_, err = cli.acctRepo.CreateAccount(acct)
	} else {
		_, err = cli.acctRepo.UpdateAccount(acct)
	}
	return err
}
