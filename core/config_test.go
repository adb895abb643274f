package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_CheckSetup(t *testing.T) {
	tests := []struct {
		name    string
		conf    Config
		wantErr bool
	}{
		{
			name: "debug runs on defaults",
			conf: Config{Debug: true},
		},
		{
			name: "test mode runs on defaults",
			conf: Config{TestMode: true},
		},
		{
			name:    "deployed without a secret key",
			conf:    Config{Database: DatabaseConfig{User: "escolar", Password: "pwd"}, SendgridAPIKey: "SG.key"},
			wantErr: true,
		},
		{
			name:    "deployed without db credentials",
			conf:    Config{SecretKey: "s3cret", SendgridAPIKey: "SG.key"},
			wantErr: true,
		},
		{
			name: "deployed fully configured",
			conf: Config{
				SecretKey:      "s3cret",
				SendgridAPIKey: "SG.key",
				Database:       DatabaseConfig{User: "escolar", Password: "pwd"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.CheckSetup()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
