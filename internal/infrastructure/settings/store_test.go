package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jumboapi/backend/internal/domain"
)

func TestStore_Defaults(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.json"))

	got, err := store.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	want := domain.DefaultMatchSettings()
	if got != want {
		t.Errorf("Get() = %+v, want defaults %+v", got, want)
	}
}

func TestStore_Update_PartialPatch(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.json"))

	threshold := 75
	strict := true
	updated, err := store.Update(domain.SettingsPatch{
		ConfidenceThreshold: &threshold,
		StrictMatching:      &strict,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	if updated.ConfidenceThreshold != 75 {
		t.Errorf("ConfidenceThreshold = %d, want 75", updated.ConfidenceThreshold)
	}
	if !updated.StrictMatching {
		t.Errorf("StrictMatching = false, want true")
	}
	// Untouched fields keep their values
	if updated.PriceMatchWeight != 40 {
		t.Errorf("PriceMatchWeight = %d, want unchanged 40", updated.PriceMatchWeight)
	}
	if !updated.ProductMatchingEnabled {
		t.Errorf("ProductMatchingEnabled = false, want unchanged true")
	}
}

func TestStore_Update_RejectsInvalid(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "settings.json"))

	tests := []struct {
		name  string
		patch domain.SettingsPatch
	}{
		{
			name: "threshold above 100",
			patch: func() domain.SettingsPatch {
				v := 150
				return domain.SettingsPatch{ConfidenceThreshold: &v}
			}(),
		},
		{
			name: "negative threshold",
			patch: func() domain.SettingsPatch {
				v := -1
				return domain.SettingsPatch{ConfidenceThreshold: &v}
			}(),
		},
		{
			name: "candidates below minimum",
			patch: func() domain.SettingsPatch {
				v := 2
				return domain.SettingsPatch{MaxProductCandidates: &v}
			}(),
		},
		{
			name: "non-monotone ean bands",
			patch: func() domain.SettingsPatch {
				lo, hi := 40, 80
				return domain.SettingsPatch{EANScore10Plus: &lo, EANScore8Plus: &hi}
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Update(tt.patch)
			if !errors.Is(err, domain.ErrInvalidSettings) {
				t.Errorf("Update() error = %v, want ErrInvalidSettings", err)
			}

			// Stored settings must be untouched after a rejected update
			got, _ := store.Get()
			if got != domain.DefaultMatchSettings() {
				t.Errorf("settings changed after rejected update: %+v", got)
			}
		})
	}
}

func TestStore_PersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	store := NewStore(path)
	threshold := 65
	enabled := false
	if _, err := store.Update(domain.SettingsPatch{
		ConfidenceThreshold:      &threshold,
		UseOpenFoodFactsFallback: &enabled,
	}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	reloaded := NewStore(path)
	got, err := reloaded.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ConfidenceThreshold != 65 {
		t.Errorf("ConfidenceThreshold after reload = %d, want 65", got.ConfidenceThreshold)
	}
	if got.UseOpenFoodFactsFallback {
		t.Errorf("UseOpenFoodFactsFallback after reload = true, want false")
	}
}

func TestStore_CorruptFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	store := NewStore(path)
	got, err := store.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != domain.DefaultMatchSettings() {
		t.Errorf("Get() = %+v, want defaults", got)
	}
}

func TestStore_Credentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store := NewStore(path)

	if _, ok := store.Credentials(); ok {
		t.Fatalf("Credentials() ok = true, want false on fresh store")
	}

	creds := domain.Credentials{Username: "user@example.com", Password: "hunter2"}
	if err := store.SetCredentials(creds); err != nil {
		t.Fatalf("SetCredentials() error = %v", err)
	}

	got, ok := store.Credentials()
	if !ok {
		t.Fatalf("Credentials() ok = false, want true")
	}
	if got != creds {
		t.Errorf("Credentials() = %+v, want %+v", got, creds)
	}

	// Stored login survives a restart
	reloaded := NewStore(path)
	got, ok = reloaded.Credentials()
	if !ok || got.Username != "user@example.com" {
		t.Errorf("Credentials() after reload = %+v ok=%v, want stored login", got, ok)
	}

	// An empty username clears the login
	if err := store.SetCredentials(domain.Credentials{}); err != nil {
		t.Fatalf("SetCredentials() clear error = %v", err)
	}
	if _, ok := store.Credentials(); ok {
		t.Errorf("Credentials() ok = true after clear, want false")
	}
}
