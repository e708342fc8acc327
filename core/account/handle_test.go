package account

import (
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func TestDeriveHandleFromName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "simple", input: "Ana Torres", want: "ana_torres"},
		{name: "already lower", input: "ana torres", want: "ana_torres"},
		{name: "diacritics folded", input: "José María Pérez", want: "jose_maria_perez"},
		{name: "n tilde folded", input: "Muñoz Ibáñez", want: "munoz_ibanez"},
		{name: "multiple spaces collapse", input: "Ana   Sofía \t Torres", want: "ana_sofia_torres"},
		{name: "punctuation stripped", input: "O'Brien-Smith, Jr.", want: "obriensmith_jr"},
		{name: "digits kept", input: "Agente 007", want: "agente_007"},
		{name: "truncated to 20", input: "Maximiliano Alejandro Fernandez", want: "maximiliano_alejandr"},
		{name: "leading and trailing space", input: "  Ana Torres  ", want: "ana_torres"},
		{name: "only symbols", input: "!!! ---", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveHandleFromName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DeriveHandleFromName() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Errorf("DeriveHandleFromName() = %q, want %q", got, tt.want)
			}
			if len(got) > maxHandleLen {
				t.Errorf("DeriveHandleFromName() len = %d, max %d", len(got), maxHandleLen)
			}
		})
	}
}

func TestDeriveHandleFromName_deterministic(t *testing.T) {
	first, err := DeriveHandleFromName("María José García")
	if err != nil {
		t.Fatalf("DeriveHandleFromName() failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		got, err := DeriveHandleFromName("María José García")
		if err != nil {
			t.Fatalf("DeriveHandleFromName() failed: %v", err)
		}
		if got != first {
			t.Fatalf("DeriveHandleFromName() not deterministic: %q != %q", got, first)
		}
	}
}

func TestDeriveGuardianHandle(t *testing.T) {
	got := DeriveGuardianHandle("C1234567890123", "1AB")
	if want := "C12345678901231AB"; got != want {
		t.Errorf("DeriveGuardianHandle() = %q, want %q", got, want)
	}
}

func TestResolveHandleConflict(t *testing.T) {
	taken := func(handles ...string) func(string) (bool, error) {
		set := make(map[string]bool, len(handles))
		for _, h := range handles {
			set[h] = true
		}
		return func(h string) (bool, error) { return set[h], nil }
	}

	tests := []struct {
		name  string
		base  string
		taken func(string) (bool, error)
		want  string
	}{
		{name: "base free", base: "ana_torres", taken: taken(), want: "ana_torres"},
		{name: "base taken", base: "ana_torres", taken: taken("ana_torres"), want: "ana_torres_1"},
		{name: "base and variants taken", base: "ana_torres",
			taken: taken("ana_torres", "ana_torres_1", "ana_torres_2"), want: "ana_torres_3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveHandleConflict(tt.base, tt.taken)
			if err != nil {
				t.Fatalf("ResolveHandleConflict() failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveHandleConflict() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveHandleConflict_exhausted(t *testing.T) {
	allTaken := func(string) (bool, error) { return true, nil }
	_, err := ResolveHandleConflict("ana", allTaken)
	if errors.Cause(err) != ErrHandleExhausted {
		t.Errorf("ResolveHandleConflict() error = %v, want %v", err, ErrHandleExhausted)
	}
}

func TestResolveHandleConflict_propagatesProbeError(t *testing.T) {
	probeErr := errors.New("boom")
	failing := func(string) (bool, error) { return false, probeErr }
	if _, err := ResolveHandleConflict("ana", failing); errors.Cause(err) != probeErr {
		t.Errorf("ResolveHandleConflict() error = %v, want %v", err, probeErr)
	}
}

func TestResolveHandleConflict_suffixExemptFromCap(t *testing.T) {
	base := strings.Repeat("a", maxHandleLen)
	got, err := ResolveHandleConflict(base, func(h string) (bool, error) { return h == base, nil })
	if err != nil {
		t.Fatalf("ResolveHandleConflict() failed: %v", err)
	}
	if want := fmt.Sprintf("%s_1", base); got != want {
		t.Errorf("ResolveHandleConflict() = %q, want %q", got, want)
	}
}

func TestHandleFormat(t *testing.T) {
	validHandle := regexp.MustCompile(`^[a-z0-9_]+$`)
	for _, name := range []string{"Ana Torres", "José-Luis", "X Æ A-12", "Ñandú É"} {
		got, err := DeriveHandleFromName(name)
		if err != nil {
			t.Fatalf("DeriveHandleFromName(%q) failed: %v", name, err)
		}
		if !validHandle.MatchString(got) {
			t.Errorf("DeriveHandleFromName(%q) = %q, not in [a-z0-9_]+", name, got)
		}
	}
}
