package flagx

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

var (
	serverFlags    = []string{"-a", "-d", "-s", "-t", "-r", "-b", "-k", "-e", "-l"}
	useradminFlags = []string{"-email", "-mode"}
)

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "server flags keep their values",
			args:    []string{"-a", ":9090", "-d", "postgres://u@db/accounts", "-t", "30"},
			allowed: serverFlags,
			want:    []string{"-a", ":9090", "-d", "postgres://u@db/accounts", "-t", "30"},
		},
		{
			name:    "useradmin flags are dropped for the server",
			args:    []string{"-email", "a@b.com", "-mode", "create", "-l", "DEBUG"},
			allowed: serverFlags,
			want:    []string{"-l", "DEBUG"},
		},
		{
			name:    "server flags are dropped for useradmin",
			args:    []string{"-d", "postgres://x", "-email", "a@b.com", "-mode=set-password"},
			allowed: useradminFlags,
			want:    []string{"-email", "a@b.com", "-mode=set-password"},
		},
		{
			name:    "equals form",
			args:    []string{"-b=https://accounts.example.com", "-x=1"},
			allowed: serverFlags,
			want:    []string{"-b=https://accounts.example.com"},
		},
		{
			name:    "value never starts with a dash",
			args:    []string{"-email", "-mode", "create"},
			allowed: useradminFlags,
			want:    []string{"-email", "-mode", "create"},
		},
		{
			name:    "flag at end without value",
			args:    []string{"-s"},
			allowed: serverFlags,
			want:    []string{"-s"},
		},
		{
			name:    "positional args ignored",
			args:    []string{"extra", "-k", "12", "more"},
			allowed: serverFlags,
			want:    []string{"-k", "12"},
		},
		{
			name:    "empty",
			args:    nil,
			allowed: serverFlags,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("FilterArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"short", []string{"-c", "/etc/useraccounts.json", "-a", ":8080"}, "/etc/useraccounts.json"},
		{"long", []string{"-config", "conf.json"}, "conf.json"},
		{"equals", []string{"-config=conf.json"}, "conf.json"},
		{"last wins", []string{"-c", "1.json", "-config", "2.json"}, "2.json"},
		{"none", []string{"-email", "a@b.com"}, ""},
		{"missing value", []string{"-c"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ConfigFile(tt.args))
		})
	}
}

func TestJsonConfigFlags_ReadsProcessArgs(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"server", "-a", ":8080", "-c", "/path/server.json"}
	assert.Equal(t, "/path/server.json", JsonConfigFlags())
}
