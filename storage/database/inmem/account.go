package inmemdb

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/escolarapp/escolar/core"
	"github.com/escolarapp/escolar/core/account"
)

type accountRepository struct {
	db *DB
}

var _ account.Repository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo *accountRepository) query() []account.Account {
	accts := make([]account.Account, 0, len(repo.db.accounts))
	for _, a := range repo.db.accounts {
		accts = append(accts, *a)
	}
	return accts
}

func (repo *accountRepository) CheckUniqueness(username, email string, exclAccts ...account.Account) ([]core.FieldConflict, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]bool, len(exclAccts))
	for _, a := range exclAccts {
		excluded[a.ID] = true
	}

	var conflicts []core.FieldConflict
	for _, acct := range repo.query() {
		if excluded[acct.ID] {
			continue
		}
		if acct.Username == username {
			conflicts = append(conflicts, core.FieldConflict{Field: "username", AccountID: acct.ID})
		}
		if acct.Email == email {
			conflicts = append(conflicts, core.FieldConflict{Field: "email", AccountID: acct.ID})
		}
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Field < conflicts[j].Field })
	return conflicts, nil
}

func (repo *accountRepository) UsernameTaken(username string) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, acct := range repo.db.accounts {
		if acct.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (repo *accountRepository) insertAccount(acct account.Account) (account.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	for _, existing := range repo.db.accounts {
		if existing.Username == acct.Username {
			return account.Account{}, core.NewConflictError(account.ErrUsernameExists,
				core.FieldConflict{Field: "username", AccountID: existing.ID})
		}
		if existing.Email == acct.Email {
			return account.Account{}, core.NewConflictError(account.ErrEmailExists,
				core.FieldConflict{Field: "email", AccountID: existing.ID})
		}
	}
	repo.db.accounts[acct.ID] = &acct
	return acct, nil
}

func (repo *accountRepository) CreateAccount(acct account.Account) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	return repo.insertAccount(acct)
}

func (repo *accountRepository) CreateStudentAccount(acct account.Account, enr account.StudentEnrollment, grp account.Group) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, s := range repo.db.students {
		if s.enrollmentCode == enr.EnrollmentCode {
			return account.Account{}, core.NewConflictError(account.ErrEnrollmentCodeExists,
				core.FieldConflict{Field: "enrollment_code", AccountID: s.accountID})
		}
	}

	acct, err := repo.insertAccount(acct)
	if err != nil {
		return account.Account{}, err
	}

	if repo.db.FailEnrollmentInsert {
		// roll the account insert back, as the SQL transaction would
		delete(repo.db.accounts, acct.ID)
		return account.Account{}, errors.New("inserting student: injected failure")
	}

	groupID := ""
	for id, g := range repo.db.groups {
		if g.YearLevel == grp.YearLevel && g.ShiftLabel == grp.ShiftLabel {
			groupID = id
			break
		}
	}
	if groupID == "" {
		groupID = uuid.New().String()
		grp.ID = groupID
		repo.db.groups[groupID] = &grp
	}

	repo.db.students[acct.ID] = &studentRecord{
		accountID:      acct.ID,
		enrollmentCode: enr.EnrollmentCode,
		groupID:        groupID,
	}
	return acct, nil
}

func (repo *accountRepository) CreateGuardianAccount(acct account.Account, homoclave, studentID string) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[studentID]; !ok {
		return account.Account{}, account.ErrStudentNotFound
	}

	acct, err := repo.insertAccount(acct)
	if err != nil {
		return account.Account{}, err
	}
	repo.db.guardians[acct.ID] = homoclave
	repo.db.links = append(repo.db.links, guardianLink{guardianID: acct.ID, studentID: studentID})
	return acct, nil
}

func (repo *accountRepository) GetAccount(filter account.GetFilter) (account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if acct, ok := repo.db.accounts[filter.ID]; ok {
			return *acct, nil
		}
		return account.Account{}, account.ErrNotFound
	}
	for _, acct := range repo.query() {
		switch {
		case filter.Username != "" && strings.EqualFold(acct.Username, filter.Username):
			return acct, nil
		case filter.Email != "" && acct.Email == filter.Email:
			return acct, nil
		case filter.UsernameOrEmail != "" &&
			(strings.EqualFold(acct.Username, filter.UsernameOrEmail) || acct.Email == filter.UsernameOrEmail):
			return acct, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (repo *accountRepository) GetStudentByEnrollmentCode(code string) (account.StudentSummary, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.students {
		if s.enrollmentCode == code {
			acct := repo.db.accounts[s.accountID]
			return account.StudentSummary{
				AccountID:      s.accountID,
				Name:           acct.Name,
				EnrollmentCode: s.enrollmentCode,
			}, nil
		}
	}
	return account.StudentSummary{}, account.ErrNotFound
}

func (repo *accountRepository) LinkedStudents(guardianID string) ([]account.StudentSummary, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]account.StudentSummary, 0)
	for _, link := range repo.db.links {
		if link.guardianID != guardianID {
			continue
		}
		if s, ok := repo.db.students[link.studentID]; ok {
			students = append(students, account.StudentSummary{
				AccountID:      s.accountID,
				Name:           repo.db.accounts[s.accountID].Name,
				EnrollmentCode: s.enrollmentCode,
			})
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].Name < students[j].Name })
	return students, nil
}

func (repo *accountRepository) QueryAccounts(filter account.QueryFilter) ([]account.Account, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	matchesSearch := func(acct account.Account) bool {
		if filter.Search == "" {
			return true
		}
		kw := strings.ToLower(filter.Search)
		return strings.Contains(strings.ToLower(acct.Name), kw) ||
			strings.Contains(strings.ToLower(acct.Username), kw) ||
			strings.Contains(strings.ToLower(acct.Email), kw)
	}
	matchesRole := func(acct account.Account) bool {
		if len(filter.Roles) == 0 {
			return true
		}
		for _, role := range filter.Roles {
			if acct.Role == role {
				return true
			}
		}
		return false
	}
	matchesWindow := func(acct account.Account) bool {
		if !filter.CreatedFrom.IsZero() && acct.CreatedAt.Before(filter.CreatedFrom) {
			return false
		}
		if !filter.CreatedTo.IsZero() && acct.CreatedAt.After(filter.CreatedTo) {
			return false
		}
		return true
	}

	accts := make([]account.Account, 0)
	for _, acct := range repo.query() {
		if !matchesSearch(acct) || !matchesRole(acct) || !matchesWindow(acct) {
			continue
		}
		if filter.IsActive != nil && acct.Active() != *filter.IsActive {
			continue
		}
		accts = append(accts, acct)
	}
	sort.Slice(accts, func(i, j int) bool { return accts[i].CreatedAt.After(accts[j].CreatedAt) })
	return accts, nil
}

func (repo *accountRepository) UpdateAccount(acct account.Account) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.accounts[acct.ID]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	// only save set fields
	if acct.PasswordHash != nil {
		orig.PasswordHash = acct.PasswordHash
	}
	if acct.IsActive != nil {
		orig.IsActive = acct.IsActive
	}
	orig.Name = acct.Name
	orig.Username = acct.Username
	orig.Email = acct.Email
	orig.TempCredential = acct.TempCredential
	orig.TempCredentialExpires = acct.TempCredentialExpires
	orig.MustChangeCredential = acct.MustChangeCredential
	orig.FirstLogin = acct.FirstLogin
	orig.UpdatedAt = acct.UpdatedAt
	orig.LastLogin = acct.LastLogin
	return *orig, nil
}

func (repo *accountRepository) SetPermanentCredential(id string, hash []byte) (account.Account, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	acct, ok := repo.db.accounts[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	acct.PasswordHash = hash
	acct.TempCredential.Valid = false
	acct.TempCredentialExpires.Valid = false
	acct.MustChangeCredential = false
	acct.FirstLogin = false
	acct.UpdatedAt = time.Now().UTC()
	return *acct, nil
}

func (repo *accountRepository) DeleteAccount(id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.accounts[id]; !ok {
		return account.ErrNotFound
	}
	if repo.db.dependents[id] > 0 {
		return account.ErrAccountReferenced
	}
	for _, link := range repo.db.links {
		if link.studentID == id {
			return account.ErrAccountReferenced
		}
	}

	links := repo.db.links[:0]
	for _, link := range repo.db.links {
		if link.guardianID != id {
			links = append(links, link)
		}
	}
	repo.db.links = links
	delete(repo.db.guardians, id)
	delete(repo.db.students, id)
	delete(repo.db.accounts, id)
	return nil
}
