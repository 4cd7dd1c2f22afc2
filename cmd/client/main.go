package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/hase-lab/accountd/internal/client"
)

var (
	version   string
	buildDate string
)

// requestTimeout bounds a single API call.
const requestTimeout = 15 * time.Second

type prompter interface {
	Line(prompt string) (string, error)
	Password(prompt string) (string, error)
}

type shell struct {
	api     *client.Client
	session *client.SessionFile
	prompt  prompter
	timeout time.Duration
}

// requestContext starts the per-call deadline. It is created after any
// prompts so that typing time does not count against it.
func (s *shell) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.timeout)
}

// repl runs the interactive shell loop.
func (s *shell) repl() {
	for {
		line, err := s.prompt.Line("accountd> ")
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Println("read error:", err)
			}
			return
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}

		switch args[0] {
		case "help":
			fmt.Println("Available commands: help, register, login, logout, passwd, users, whoami, exit")
		case "register":
			s.register()
		case "login":
			s.login()
		case "logout":
			s.logout()
		case "passwd":
			s.passwd()
		case "users":
			s.users()
		case "whoami":
			s.whoami()
		case "exit":
			fmt.Println("Bye")
			return
		default:
			fmt.Println("Unknown command. Type 'help' for a list of commands.")
		}
	}
}

func (s *shell) register() {
	name, err := s.prompt.Line("Name: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	username, err := s.prompt.Line("Username: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	password, err := s.prompt.Password("Password: ")
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx, cancel := s.requestContext()
	defer cancel()
	u, err := s.api.Register(ctx, name, username, password)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("Registered %s (id %d) on %s\n", u.Username, u.ID, u.CreationDate)
}

func (s *shell) login() {
	username, err := s.prompt.Line("Username: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	password, err := s.prompt.Password("Password: ")
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx, cancel := s.requestContext()
	defer cancel()
	u, err := s.api.Login(ctx, username, password)
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := s.session.Save(&client.Session{Username: u.Username, Token: u.Token}); err != nil {
		fmt.Println("failed to save session:", err)
	}
	fmt.Printf("Logged in as %s\n", u.Username)
}

func (s *shell) logout() {
	sess, err := s.session.Load()
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx, cancel := s.requestContext()
	defer cancel()
	if err := s.api.Logout(ctx, sess.Token); err != nil {
		fmt.Println(err)
		return
	}
	_ = s.session.Clear()
	fmt.Println("Logged out")
}

func (s *shell) passwd() {
	sess, err := s.session.Load()
	if err != nil {
		fmt.Println(err)
		return
	}
	newPassword, err := s.prompt.Password("New password: ")
	if err != nil {
		fmt.Println(err)
		return
	}
	ctx, cancel := s.requestContext()
	defer cancel()
	if err := s.api.ChangePassword(ctx, sess.Token, newPassword); err != nil {
		fmt.Println(err)
		return
	}
	_ = s.session.Clear()
	fmt.Println("Password changed. Please log in again.")
}

func (s *shell) users() {
	ctx, cancel := s.requestContext()
	defer cancel()
	users, err := s.api.ListUsers(ctx)
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, u := range users {
		fmt.Printf("%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Name, u.Status, u.CreationDate)
	}
}

func (s *shell) whoami() {
	sess, err := s.session.Load()
	if err != nil {
		fmt.Println(err)
		return
	}
	if sess.Token == "" {
		fmt.Println("Not logged in")
		return
	}
	fmt.Println(sess.Username)
}

// main parses command-line flags and starts the shell.
func main() {
	var (
		baseURL     string
		caFile      string
		sessionPath string
		showVer     bool
	)

	flag.StringVar(&baseURL, "url", "http://localhost:8080", "server base URL")
	flag.StringVar(&caFile, "ca", "", "path to CA cert for HTTPS servers")
	flag.StringVar(&sessionPath, "session", "session.json", "path to the local session file")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("accountd client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	api, err := client.New(baseURL, caFile)
	if err != nil {
		log.Fatal(err)
	}

	sh := &shell{
		api:     api,
		session: &client.SessionFile{Path: sessionPath},
		prompt:  client.NewPrompter(),
		timeout: requestTimeout,
	}
	sh.repl()
}
