package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("  from-file \n"), 0o600); err != nil {
		t.Fatalf("write key file: %v", err)
	}
	emptyFile := filepath.Join(dir, "empty")
	if err := os.WriteFile(emptyFile, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write empty file: %v", err)
	}

	t.Setenv("CALL_FINDER_TEST_KEY", " from-env ")

	tests := []struct {
		name    string
		src     Source
		want    string
		wantErr string
	}{
		{name: "file wins", src: Source{File: keyFile, Value: "inline", Env: "CALL_FINDER_TEST_KEY"}, want: "from-file"},
		{name: "inline before env", src: Source{Value: " inline ", Env: "CALL_FINDER_TEST_KEY"}, want: "inline"},
		{name: "env", src: Source{Env: "CALL_FINDER_TEST_KEY"}, want: "from-env"},
		{name: "empty file", src: Source{Name: "api key", File: emptyFile}, wantErr: "api key file"},
		{name: "missing file", src: Source{File: filepath.Join(dir, "nope")}, wantErr: "reading secret"},
		{name: "unset env", src: Source{Name: "token", Env: "CALL_FINDER_UNSET_KEY"}, wantErr: "CALL_FINDER_UNSET_KEY is empty"},
		{name: "nothing", src: Source{Name: "token"}, wantErr: "token is not configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.src)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
