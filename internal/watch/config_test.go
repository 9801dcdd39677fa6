// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cfg        Config
		wantFields int
	}{
		{
			name: "zero value is valid",
			cfg:  Config{},
		},
		{
			name: "source patterns with ignores",
			cfg: Config{
				Patterns: SourcePatterns,
				Ignore:   []string{".workerstitch/**", "dist/**"},
				BaseDir:  "/srv/app",
			},
		},
		{
			name:       "empty pattern",
			cfg:        Config{Patterns: []string{""}},
			wantFields: 1,
		},
		{
			name:       "blank ignore",
			cfg:        Config{Ignore: []string{"  "}},
			wantFields: 1,
		},
		{
			name:       "whitespace base dir",
			cfg:        Config{BaseDir: "   "},
			wantFields: 1,
		},
		{
			name:       "unterminated class",
			cfg:        Config{Patterns: []string{"src/[abc"}},
			wantFields: 1,
		},
		{
			name: "every field invalid",
			cfg: Config{
				Patterns: []string{"", "**/*.ts", ""},
				Ignore:   []string{"{a,b"},
				BaseDir:  " ",
			},
			wantFields: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if tt.wantFields == 0 {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}

			if !errors.Is(err, ErrInvalidWatchConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidWatchConfig", err)
			}
			var configErr *InvalidWatchConfigError
			if !errors.As(err, &configErr) {
				t.Fatalf("error should be *InvalidWatchConfigError, got %T", err)
			}
			if len(configErr.FieldErrors) != tt.wantFields {
				t.Errorf("got %d field errors, want %d: %v", len(configErr.FieldErrors), tt.wantFields, configErr.FieldErrors)
			}
		})
	}
}

func TestInvalidWatchConfigError_Unwrap(t *testing.T) {
	t.Parallel()

	err := &InvalidWatchConfigError{FieldErrors: []error{errors.New("test")}}
	if !errors.Is(err, ErrInvalidWatchConfig) {
		t.Error("Unwrap() should return ErrInvalidWatchConfig")
	}
	if err.Error() == "" {
		t.Error("Error() returned empty string")
	}
}
