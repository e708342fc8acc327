package account

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/escolarapp/escolar/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"

	enrollCodeTag   = "enrollcode"
	enrollCodeText  = "enrollment code must be 'C' followed by 13 digits"
	enrollCodeRegex = regexp.MustCompile(`^C\d{13}$`)

	homoclaveTag   = "homoclave"
	homoclaveText  = "homoclave must be 3 characters mixing letters and a digit"
	homoclaveRegex = regexp.MustCompile(`^(\d[A-Za-z]{2}|[A-Za-z]{2}\d)$`)

	studentAttrsTag  = "student_attrs"
	studentAttrsText = "enrollment code, group number and year level are required for student accounts"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to account attributes"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"
	commonPasswords = make([]string, 0, 19727) // number of total pwds in /assets/common-passwords.txt.gz
)

// InitValidators registers the account validation tags and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	loadCommonPasswords()

	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	_ = validate.RegisterValidation(enrollCodeTag, enrollCodeValidation)
	core.RegisterCustomTranslation(validate, translator, enrollCodeTag, enrollCodeText)

	_ = validate.RegisterValidation(homoclaveTag, homoclaveValidation)
	core.RegisterCustomTranslation(validate, translator, homoclaveTag, homoclaveText)

	validate.RegisterStructValidation(accountStructValidation, NewAccount{})
	validate.RegisterStructValidation(accountStructValidation, ChangeTemporaryCredential{})
	core.RegisterCustomTranslation(validate, translator, studentAttrsTag, studentAttrsText)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdNoCommonText)
}

func loadCommonPasswords() {
	cwd, _ := os.Getwd()
	pwdAssetPath := filepath.Join(cwd, "assets", "common-passwords.txt.gz")
	if file, err := os.Open(pwdAssetPath); err == nil {
		//goland:noinspection GoUnhandledErrorResult
		defer file.Close()
		if gzRdr, err := gzip.NewReader(file); err == nil {
			scanner := bufio.NewScanner(gzRdr)
			for scanner.Scan() {
				commonPasswords = append(commonPasswords, strings.TrimSpace(scanner.Text()))
			}
		}
	}
	sort.Strings(commonPasswords)
}

// Custom Validators

func roleValidation(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	for _, r := range AllRoles {
		if role == r {
			return true
		}
	}
	return false
}

func enrollCodeValidation(fl validator.FieldLevel) bool {
	return enrollCodeRegex.MatchString(fl.Field().String())
}

func homoclaveValidation(fl validator.FieldLevel) bool {
	return homoclaveRegex.MatchString(fl.Field().String())
}

// accountStructValidation does struct level validation on NewAccount and
// ChangeTemporaryCredential structs.
func accountStructValidation(sl validator.StructLevel) {
	switch v := sl.Current().Interface().(type) {
	case NewAccount:
		validateStudentAttributes(v, sl)
		validatePassword(v.Password, "password", v.Name, v.Username, v.Email, sl)
	case ChangeTemporaryCredential:
		validatePassword(v.NewCredential, "new_credential", "", "", "", sl)
	}
}

// validateStudentAttributes checks that student accounts carry their
// role-specific enrollment fields; other roles must not.
func validateStudentAttributes(na NewAccount, sl validator.StructLevel) {
	if na.Role != RoleStudent {
		return
	}
	if na.Student == nil ||
		na.Student.EnrollmentCode == "" ||
		na.Student.GroupNumber == 0 ||
		na.Student.YearLevel == 0 {
		sl.ReportError(na.Student, "student", "Student", studentAttrsTag, "")
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no account attrs similarity
// - no common password
func validatePassword(pwd, fieldName, name, uname, email string, sl validator.StructLevel) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, fieldName, "Password", tag, "")
	}

	var (
		digitCount         int
		hasUpper, hasLower bool
	)

	// - minLen: 8
	pwdLen := len(pwd)
	if pwdLen < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}
	for _, char := range pwd {
		// - no whitespace
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	// - not all numeric
	if digitCount == pwdLen {
		reportErr(pwdNotAllNumTag)
		return
	}

	// - complexity: 1 upper, 1 lower, 1 digit & 1 special
	if !(hasUpper && hasLower && digitCount > 0 && specialRegex.MatchString(pwd)) {
		reportErr(pwdComplexityTag)
		return
	}

	// - no account attrs similarity
	getRatio := func(pass, attr string) float64 {
		if attr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(pass, ""), strings.Split(attr, "")).QuickRatio()
	}
	if getRatio(pwd, name) >= pwdMaxSim ||
		getRatio(pwd, uname) >= pwdMaxSim ||
		getRatio(pwd, email) >= pwdMaxSim {
		reportErr(pwdAttrSimTag)
		return
	}

	// - no common passwords
	lpwd := strings.ToLower(pwd)
	if idx := sort.SearchStrings(commonPasswords, lpwd); idx < len(commonPasswords) {
		if match := commonPasswords[idx]; lpwd == match {
			reportErr(pwdNoCommonTag)
			return
		}
	}
}
