package main

import (
	"github.com/escolarapp/escolar/core"
	"github.com/escolarapp/escolar/core/account"
)

// resetPassword sets a new permanent password, clearing any temporary
// credential state on the account.
func (cli *commandLine) resetPassword(login, pwd string) error {
	acct, err := cli.acctRepo.GetAccount(account.GetFilter{UsernameOrEmail: core.CleanString(login, true /* lower */)})
	if err != nil {
		return err
	}
	if err := acct.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.acctRepo.SetPermanentCredential(acct.ID, acct.PasswordHash)
	return err
}
