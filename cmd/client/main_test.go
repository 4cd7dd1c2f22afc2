package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hase-lab/accountd/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowPrompter answers from fixed lines and waits before each password,
// like a user typing.
type slowPrompter struct {
	lines    []string
	password string
	delay    time.Duration
}

func (p *slowPrompter) Line(string) (string, error) {
	line := p.lines[0]
	p.lines = p.lines[1:]
	return line, nil
}

func (p *slowPrompter) Password(string) (string, error) {
	time.Sleep(p.delay)
	return p.password, nil
}

func TestShell_LoginDeadlineStartsAfterPrompts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/login", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"name":"Alice","username":"alice","token":"t2","status":"ONLINE","creationDate":"2026-03-14"}`))
	}))
	defer srv.Close()

	api, err := client.New(srv.URL, "")
	require.NoError(t, err)
	session := &client.SessionFile{Path: filepath.Join(t.TempDir(), "session.json")}
	sh := &shell{
		api:     api,
		session: session,
		prompt:  &slowPrompter{lines: []string{"alice"}, password: "pw", delay: 200 * time.Millisecond},
		timeout: 100 * time.Millisecond,
	}

	sh.login()

	sess, err := session.Load()
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username)
	assert.Equal(t, "t2", sess.Token)
}

func TestShell_PasswdDeadlineStartsAfterPrompts(t *testing.T) {
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "/api/users/password", r.URL.Path)
		assert.Equal(t, "Bearer t2", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	api, err := client.New(srv.URL, "")
	require.NoError(t, err)
	session := &client.SessionFile{Path: filepath.Join(t.TempDir(), "session.json")}
	require.NoError(t, session.Save(&client.Session{Username: "alice", Token: "t2"}))
	sh := &shell{
		api:     api,
		session: session,
		prompt:  &slowPrompter{password: "pw2", delay: 200 * time.Millisecond},
		timeout: 100 * time.Millisecond,
	}

	sh.passwd()

	assert.True(t, called)
	sess, err := session.Load()
	require.NoError(t, err)
	assert.Empty(t, sess.Token)
}
