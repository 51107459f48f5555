package session_test

import (
	"path/filepath"
	"testing"

	"github.com/njyeung/sofa/session"
	"github.com/stretchr/testify/require"
)

func TestLoginLogoutAdvanceStamp(t *testing.T) {
	s := session.New()
	require.False(t, s.SignedIn())
	require.Nil(t, s.User())

	before := s.Stamp()
	s.Login("tok", session.DomainEmail, session.User{ID: "u1", FirstName: "Ada"})
	require.False(t, s.Valid(before))
	require.True(t, s.SignedIn())
	require.Equal(t, "u1", s.User().ID)

	during := s.Stamp()
	require.True(t, s.Valid(during))

	s.Logout()
	require.False(t, s.Valid(during))
	require.False(t, s.SignedIn())
	require.Nil(t, s.User())
}

func TestUserReturnsCopy(t *testing.T) {
	s := session.New()
	s.Login("tok", session.DomainEmail, session.User{ID: "u1"})

	u := s.User()
	u.ID = "changed"
	require.Equal(t, "u1", s.User().ID)
}

func TestToken(t *testing.T) {
	s := session.New()
	_, err := s.Token()
	require.ErrorIs(t, err, session.ErrNoToken)

	s.Login("abc", session.DomainWeb, session.User{ID: "u1"})
	tok, err := s.Token()
	require.NoError(t, err)
	require.Equal(t, "abc", tok.AccessToken)
	require.Equal(t, "Bearer", tok.Type())
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	s := session.New()
	s.Login("abc", session.DomainGoogle, session.User{ID: "u1", Username: "ada"})
	require.NoError(t, s.Save(path))

	restored := session.New()
	require.NoError(t, restored.Load(path))
	require.True(t, restored.SignedIn())
	require.Equal(t, session.DomainGoogle, restored.Domain())
	require.Equal(t, "ada", restored.User().Username)
}

func TestLoadMissingFile(t *testing.T) {
	s := session.New()
	require.NoError(t, s.Load(filepath.Join(t.TempDir(), "missing.json")))
	require.False(t, s.SignedIn())
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Ada Lovelace", session.User{FirstName: "Ada", LastName: "Lovelace"}.DisplayName())
	require.Equal(t, "ada", session.User{Username: "ada"}.DisplayName())
	require.Equal(t, "a@b.c", session.User{Email: "a@b.c"}.DisplayName())
}
