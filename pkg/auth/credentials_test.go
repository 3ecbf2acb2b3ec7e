package auth

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fbscraper/pkg/errors"
)

const sampleRequestData = `:authority: www.facebook.com
:method: POST
cookie: c_user=100001; xs=33%3Aabcdef; datr=xyz
origin: https://www.facebook.com

__user: 100001
__a: 1
__dyn: 7AgNe5Gmawgrolg
__req: 1a
fb_dtsg: AQHk2_secret:AQH
__rev: 4059382
`

func TestParseRequestData(t *testing.T) {
	data, err := ParseRequestData(sampleRequestData)
	if err != nil {
		t.Fatalf("Failed to parse request data: %v", err)
	}

	if data.Cookie != "c_user=100001; xs=33%3Aabcdef; datr=xyz" {
		t.Errorf("Cookie mismatch: got %q", data.Cookie)
	}
	if data.UserID() != "100001" {
		t.Errorf("User mismatch: got %q", data.UserID())
	}
	if got := data.Form.Get("fb_dtsg"); got != "AQHk2_secret:AQH" {
		t.Errorf("fb_dtsg mismatch: got %q", got)
	}
	if len(data.Form) != 6 {
		t.Errorf("Expected 6 form fields, got %d", len(data.Form))
	}
	if data.Headers()["Cookie"] != data.Cookie {
		t.Error("Expected cookie header")
	}
}

func TestParseRequestDataMissingFields(t *testing.T) {
	raw := strings.Replace(sampleRequestData, "fb_dtsg: AQHk2_secret:AQH\n", "", 1)
	raw = strings.Replace(raw, "cookie: c_user=100001; xs=33%3Aabcdef; datr=xyz\n", "", 1)

	_, err := ParseRequestData(raw)
	if !errors.IsType(err, errors.ErrorTypeCredentials) {
		t.Fatalf("Expected credentials error, got %v", err)
	}
	if !strings.Contains(err.Error(), "cookie") || !strings.Contains(err.Error(), "fb_dtsg") {
		t.Errorf("Expected both missing fields named, got %v", err)
	}
}

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	account := &Account{Name: "personal", RequestData: sampleRequestData}

	if err := manager.Store(account); err != nil {
		t.Fatalf("Failed to store account: %v", err)
	}
	if account.LastModified.IsZero() {
		t.Error("Expected LastModified to be set")
	}

	retrieved, err := manager.Retrieve("personal")
	if err != nil {
		t.Fatalf("Failed to retrieve account: %v", err)
	}
	if retrieved.RequestData != account.RequestData {
		t.Error("Request data mismatch")
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) != 1 {
		t.Errorf("Expected one account, got %d (%v)", len(accounts), err)
	}

	sanitized := SanitizeAccount(account)
	if !sanitized.Valid || sanitized.UserID != "100001" {
		t.Errorf("Unexpected sanitized account: %+v", sanitized)
	}
	if strings.Contains(sanitized.Cookie, "abcdef") || strings.Contains(sanitized.DTSG, "secret") {
		t.Error("Secrets should be masked")
	}

	if err := manager.Delete("personal"); err != nil {
		t.Errorf("Failed to delete account: %v", err)
	}
	if _, err := manager.Retrieve("personal"); err == nil {
		t.Error("Expected error retrieving deleted account")
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 accounts after deletion, got %d", mockStore.Count())
	}
}

func TestManagerRejectsInvalidRequestData(t *testing.T) {
	manager, mockStore := NewMockManager()

	err := manager.Store(&Account{Name: "broken", RequestData: "cookie: x\n"})
	if !errors.IsType(err, errors.ErrorTypeCredentials) {
		t.Errorf("Expected credentials error, got %v", err)
	}
	if err := manager.Store(&Account{RequestData: sampleRequestData}); err == nil {
		t.Error("Expected error for missing name")
	}
	if mockStore.Count() != 0 {
		t.Error("Nothing should be stored")
	}
}

func TestManagerFallsBackAcrossStores(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = fmt.Errorf("keyring locked")
	backup := NewMockStore()
	manager := NewManagerWithStores(failing, backup)

	if err := manager.Store(&Account{Name: "a", RequestData: sampleRequestData}); err != nil {
		t.Fatalf("Expected fallback store to accept the account: %v", err)
	}
	if backup.Count() != 1 || failing.Count() != 0 {
		t.Error("Account should land in the fallback store")
	}
}

func TestManagerListOrderAndDefault(t *testing.T) {
	store := NewMockStore()
	now := time.Now()
	store.Store(&Account{Name: "old", RequestData: sampleRequestData, LastModified: now.Add(-time.Hour)})
	store.Store(&Account{Name: "new", RequestData: sampleRequestData, LastModified: now})
	manager := NewManagerWithStores(store, NewEnvironmentStore())

	t.Setenv(EnvRequestData, "")
	accounts, _ := manager.List()
	if len(accounts) != 2 || accounts[0].Name != "new" {
		t.Fatalf("Expected most recent account first, got %+v", accounts)
	}

	def, err := manager.RetrieveDefault()
	if err != nil || def.Name != "new" {
		t.Errorf("Expected default to be the most recent account, got %+v (%v)", def, err)
	}

	t.Setenv(EnvRequestData, sampleRequestData)
	def, err = manager.RetrieveDefault()
	if err != nil || def.Name != "default" {
		t.Errorf("Expected the environment account, got %+v (%v)", def, err)
	}
}

func TestEncryptedFileStore(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "creds.enc")
	t.Setenv("FBSCRAPER_PASSPHRASE", "test_passphrase_123")

	store, err := NewEncryptedFileStore(tempFile)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	account := &Account{Name: "encrypted_user", RequestData: sampleRequestData}
	if err := store.Store(account); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}

	retrieved, err := store.Retrieve("encrypted_user")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.RequestData != account.RequestData {
		t.Error("Request data mismatch after encryption/decryption")
	}

	fileContent, err := os.ReadFile(tempFile)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(fileContent, []byte("xs=33")) || bytes.Contains(fileContent, []byte("AQHk2_secret")) {
		t.Error("File contains plaintext session material")
	}

	if !store.Exists("encrypted_user") || store.Exists("other") {
		t.Error("Exists mismatch")
	}
	if err := store.Delete("encrypted_user"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := os.Stat(tempFile); !os.IsNotExist(err) {
		t.Error("Expected store file to be removed with its last account")
	}
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	tempFile := filepath.Join(t.TempDir(), "creds.enc")

	t.Setenv("FBSCRAPER_PASSPHRASE", "first")
	store, _ := NewEncryptedFileStore(tempFile)
	if err := store.Store(&Account{Name: "a", RequestData: sampleRequestData}); err != nil {
		t.Fatal(err)
	}

	t.Setenv("FBSCRAPER_PASSPHRASE", "second")
	other, _ := NewEncryptedFileStore(tempFile)
	if _, err := other.Retrieve("a"); err == nil {
		t.Error("Expected decryption to fail with another passphrase")
	}
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FBSCRAPER_PASSPHRASE", "")

	if _, err := NewEncryptedFileStore(filepath.Join(dir, "creds.enc")); err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, ".passphrase"))
	if err != nil {
		t.Fatalf("Expected generated passphrase file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(EnvRequestData, sampleRequestData)

	store := NewEnvironmentStore()
	account, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if account.Name != "default" || account.RequestData != sampleRequestData {
		t.Errorf("Unexpected environment account: %+v", account)
	}

	if err := store.Store(&Account{}); err != ErrStoreUnavailable {
		t.Error("Expected ErrStoreUnavailable for environment store")
	}
}

func TestMockStoreErrorInjection(t *testing.T) {
	store := NewMockStore()
	store.ListError = fmt.Errorf("injected error")

	if _, err := store.List(); err == nil || err.Error() != "injected error" {
		t.Error("Expected injected error")
	}
}

func TestShowRequestDataGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowRequestDataGuide(&buf)
	for _, field := range requiredFormFields {
		if !strings.Contains(buf.String(), field) {
			t.Errorf("Guide does not mention %s", field)
		}
	}
}
