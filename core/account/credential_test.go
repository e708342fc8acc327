package account

import (
	"regexp"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"
)

func fixtureTempAccount(cred string, expiry time.Time) Account {
	return Account{
		TempCredential:        null.StringFrom(cred),
		TempCredentialExpires: null.TimeFrom(expiry),
		MustChangeCredential:  true,
	}
}

var tempCredRegex = regexp.MustCompile(`^[A-Z]{4}[0-9]{4}$`)

func TestGenerateTemporaryCredential(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		cred, err := GenerateTemporaryCredential()
		if err != nil {
			t.Fatalf("GenerateTemporaryCredential() failed: %v", err)
		}
		if !tempCredRegex.MatchString(cred) {
			t.Fatalf("GenerateTemporaryCredential() = %q, want 4 uppercase letters + 4 digits", cred)
		}
		seen[cred] = true
	}
	// 100 draws from a 26^4 * 10^4 space colliding down to a handful would
	// mean the generator is broken
	if len(seen) < 90 {
		t.Errorf("GenerateTemporaryCredential() produced only %d distinct values in 100 draws", len(seen))
	}
}

func TestComputeTempCredentialExpiry(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got := ComputeTempCredentialExpiry(now, 3*24*time.Hour)
	if want := now.Add(72 * time.Hour); !got.Equal(want) {
		t.Errorf("ComputeTempCredentialExpiry() = %v, want %v", got, want)
	}
}

func TestAccountTempCredentialState(t *testing.T) {
	now := time.Now().UTC()

	acct := Account{}
	if acct.TempCredentialExpired(now) {
		t.Error("TempCredentialExpired() = true for account without temporary credential")
	}
	if acct.MatchesTempCredential("ABCD1234", now) {
		t.Error("MatchesTempCredential() = true for account without temporary credential")
	}

	acct = fixtureTempAccount("ABCD1234", now.Add(time.Hour))
	if acct.TempCredentialExpired(now) {
		t.Error("TempCredentialExpired() = true before expiry")
	}
	if !acct.MatchesTempCredential("ABCD1234", now) {
		t.Error("MatchesTempCredential() = false for the matching credential")
	}
	if acct.MatchesTempCredential("WXYZ9999", now) {
		t.Error("MatchesTempCredential() = true for a wrong credential")
	}

	acct = fixtureTempAccount("ABCD1234", now.Add(-time.Minute))
	if !acct.TempCredentialExpired(now) {
		t.Error("TempCredentialExpired() = false after expiry")
	}
	if acct.MatchesTempCredential("ABCD1234", now) {
		t.Error("MatchesTempCredential() = true after expiry")
	}
}
