package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"gopkg.in/yaml.v3"
)

// Session holds REPL state.
type Session struct {
	client *Client
}

// NewSession creates a REPL over the client.
func NewSession(client *Client) *Session {
	return &Session{client: client}
}

// Run reads commands until EOF or quit.
func (s *Session) Run(ctx context.Context) error {
	rl, err := readline.New("judgebox> ")
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			fmt.Println("bye")
			return nil
		}
		if err := s.handle(ctx, line); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func (s *Session) handle(ctx context.Context, line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("parse command: %w", err)
	}

	switch args[0] {
	case "help":
		s.printHelp()
		return nil
	case "set":
		return s.handleSet(args[1:])
	case "health":
		return s.get(ctx, "/api/health")
	case "languages":
		return s.get(ctx, "/api/languages")
	case "mode":
		return s.handleMode(ctx)
	case "run":
		return s.handleRun(ctx, args[1:])
	case "judge":
		return s.handleJudge(ctx, args[1:])
	default:
		return fmt.Errorf("unknown command %q (try help)", args[0])
	}
}

func (s *Session) handleSet(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: set base|timeout <value>")
	}
	switch args[0] {
	case "base":
		s.client.SetBaseURL(args[1])
	case "timeout":
		dur, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		s.client.SetTimeout(dur)
	default:
		return fmt.Errorf("unknown setting %q", args[0])
	}
	return nil
}

// handleMode reports which execution backend the server runs.
func (s *Session) handleMode(ctx context.Context) error {
	info, err := s.client.Do(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return err
	}
	var env struct {
		Success bool `json:"success"`
		Data    struct {
			ExecutionMode string `json:"executionMode"`
		} `json:"data"`
	}
	if err := json.Unmarshal(info.Body, &env); err != nil || !env.Success {
		return fmt.Errorf("health request failed (HTTP %d)", info.StatusCode)
	}
	fmt.Printf("execution mode: %s\n", env.Data.ExecutionMode)
	return nil
}

// handleRun submits one execute request: run <lang> <source-file> [stdin-file]
func (s *Session) handleRun(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: run <language> <source-file> [stdin-file]")
	}
	source, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	input := ""
	if len(args) > 2 {
		data, err := os.ReadFile(args[2])
		if err != nil {
			return err
		}
		input = string(data)
	}
	body, err := json.Marshal(map[string]interface{}{
		"language": args[0],
		"code":     string(source),
		"input":    input,
	})
	if err != nil {
		return err
	}
	return s.post(ctx, "/api/execute", body)
}

// caseFile is the YAML shape for judge test cases.
type caseFile struct {
	TimeLimit   int `yaml:"timeLimit"`
	MemoryLimit int `yaml:"memoryLimit"`
	Cases       []struct {
		Input          string `yaml:"input"`
		ExpectedOutput string `yaml:"expectedOutput"`
	} `yaml:"cases"`
}

// handleJudge submits a judge request: judge <lang> <source-file> <cases.yaml>
func (s *Session) handleJudge(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: judge <language> <source-file> <cases.yaml>")
	}
	source, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	caseData, err := os.ReadFile(args[2])
	if err != nil {
		return err
	}
	var cases caseFile
	if err := yaml.Unmarshal(caseData, &cases); err != nil {
		return fmt.Errorf("parse cases file: %w", err)
	}

	testCases := make([]map[string]string, len(cases.Cases))
	for i, tc := range cases.Cases {
		testCases[i] = map[string]string{
			"input":          tc.Input,
			"expectedOutput": tc.ExpectedOutput,
		}
	}
	payload := map[string]interface{}{
		"language":  args[0],
		"code":      string(source),
		"testCases": testCases,
	}
	if cases.TimeLimit > 0 {
		payload["timeLimit"] = cases.TimeLimit
	}
	if cases.MemoryLimit > 0 {
		payload["memoryLimit"] = cases.MemoryLimit
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.post(ctx, "/api/judge", body)
}

func (s *Session) get(ctx context.Context, path string) error {
	info, err := s.client.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	s.printResponse(info)
	return nil
}

func (s *Session) post(ctx context.Context, path string, body []byte) error {
	info, err := s.client.Do(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	s.printResponse(info)
	return nil
}

func (s *Session) printResponse(info ResponseInfo) {
	fmt.Printf("HTTP %d (%s)\n", info.StatusCode, info.Duration.Round(time.Millisecond))
	var pretty map[string]interface{}
	if err := json.Unmarshal(info.Body, &pretty); err == nil {
		out, err := json.MarshalIndent(pretty, "", "  ")
		if err == nil {
			fmt.Println(string(out))
			return
		}
	}
	fmt.Println(string(info.Body))
}

func (s *Session) printHelp() {
	fmt.Println(`commands:
  health                                liveness and queue snapshot
  languages                             supported languages and limits
  mode                                  server execution backend
  run <lang> <source-file> [stdin]      execute once
  judge <lang> <source-file> <cases>    judge against a YAML case file
  set base <url> | set timeout <dur>    client settings
  quit`)
}
