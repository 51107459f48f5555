package backend

import (
	"testing"

	"github.com/njyeung/sofa/session"
	"github.com/stretchr/testify/require"
)

func TestParseWebStorage(t *testing.T) {
	tests := []struct {
		name    string
		storage map[string]string
		ok      bool
		want    *WebAuth
	}{
		{
			name:    "not signed in yet",
			storage: map[string]string{},
		},
		{
			name:    "token only",
			storage: map[string]string{"token": "abc"},
			ok:      true,
			want:    &WebAuth{Auth: Auth{Token: "abc"}, Domain: session.DomainWeb},
		},
		{
			name: "quoted values and user",
			storage: map[string]string{
				"token":  `"abc"`,
				"domain": `"google"`,
				"user":   `{"id":"u1","username":"vera","first_name":"Vera","last_name":"V","avatar":{"image_url":"https://x/a.png"}}`,
			},
			ok: true,
			want: &WebAuth{
				Auth: Auth{
					Token: "abc",
					User: session.User{
						ID:        "u1",
						Username:  "vera",
						FirstName: "Vera",
						LastName:  "V",
						AvatarURL: "https://x/a.png",
					},
				},
				Domain: session.DomainGoogle,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := parseWebStorage(tt.storage)
			require.NoError(t, err)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseWebStorageBadUser(t *testing.T) {
	_, _, err := parseWebStorage(map[string]string{"token": "abc", "user": "{"})
	require.Error(t, err)
}
