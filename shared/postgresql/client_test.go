package postgresql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DSN(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   string
	}{
		{
			name:   "plain values",
			config: Config{Host: "db", Port: 5432, User: "bridge", Password: "secret", Database: "onprem", SSLMode: "require"},
			want:   "host=db port=5432 user=bridge password=secret dbname=onprem sslmode=require",
		},
		{
			name:   "default sslmode",
			config: Config{Host: "db", Port: 5432, User: "bridge", Password: "secret", Database: "onprem"},
			want:   "host=db port=5432 user=bridge password=secret dbname=onprem sslmode=disable",
		},
		{
			name:   "quoted password",
			config: Config{Host: "db", Port: 5432, User: "bridge", Password: `it's a secret`, Database: "onprem"},
			want:   `host=db port=5432 user=bridge password='it\'s a secret' dbname=onprem sslmode=disable`,
		},
		{
			name:   "empty password",
			config: Config{Host: "db", Port: 5432, User: "bridge", Database: "onprem"},
			want:   "host=db port=5432 user=bridge password='' dbname=onprem sslmode=disable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.DSN())
		})
	}
}
