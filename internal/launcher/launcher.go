// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package launcher builds and supervises the vLLM inference server
// command line. It resolves the model directory, renders the argument
// set, starts the process, and polls the generate endpoint until the
// server answers.
package launcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/docbase/internal/httputil"
	"github.com/pdiddy/docbase/pkg/types"
)

const (
	serverModule = "vllm.entrypoints.api_server"

	// PortAuto asks the launcher to pick a random port in [30000, 40000).
	PortAuto = "auto"
)

// defaultArgs mirror the server's recommended settings. Callers override
// individual keys through LaunchConfig.Options; unknown keys are rejected
// so typos fail at construction instead of inside the server.
var defaultArgs = map[string]string{
	"max-model-len":        "32768",
	"dtype":                "auto",
	"kv-cache-dtype":       "auto",
	"tokenizer-mode":       "auto",
	"device":               "auto",
	"block-size":           "16",
	"tensor-parallel-size": "1",
	"seed":                 "0",
	"port":                 PortAuto,
	"host":                 "0.0.0.0",
}

// executor abstracts process startup for testing.
type executor interface {
	LookPath(file string) (string, error)
	Start(name string, args []string, env []string, stdout, stderr io.Writer) (Process, error)
}

// Process is a handle on a started server.
type Process interface {
	Wait() error
	Kill() error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Start(name string, args []string, env []string, stdout, stderr io.Writer) (Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &osProcess{cmd: cmd}, nil
}

type osProcess struct {
	cmd *exec.Cmd
}

func (p *osProcess) Wait() error { return p.cmd.Wait() }
func (p *osProcess) Kill() error { return p.cmd.Process.Kill() }

var defaultExec executor = &osExecutor{}

// Launcher templates and runs one inference server.
type Launcher struct {
	args            map[string]string
	modelDir        string
	baseModel       string
	trustRemoteCode bool
	readyTimeout    time.Duration
	exec            executor
	client          *http.Client
}

// New builds a Launcher from cfg. Option keys not present in the
// default argument set are rejected.
func New(cfg types.LaunchConfig) (*Launcher, error) {
	args := make(map[string]string, len(defaultArgs))
	for k, v := range defaultArgs {
		args[k] = v
	}
	for k, v := range cfg.Options {
		if _, known := args[k]; !known {
			return nil, fmt.Errorf("unknown server option %q (known: %v)", k, knownOptions())
		}
		args[k] = v
	}

	readyTimeout := cfg.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 5 * time.Minute
	}

	return &Launcher{
		args:            args,
		modelDir:        cfg.ModelDir,
		baseModel:       cfg.BaseModel,
		trustRemoteCode: cfg.TrustRemoteCode,
		readyTimeout:    readyTimeout,
		exec:            defaultExec,
		client:          &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func knownOptions() []string {
	keys := make([]string, 0, len(defaultArgs))
	for k := range defaultArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResolveModel picks the model to serve: modelDir when it holds weight
// files, otherwise baseModel.
func ResolveModel(modelDir, baseModel string, w io.Writer) (string, error) {
	if hasWeights(modelDir) {
		return modelDir, nil
	}
	if baseModel == "" {
		return "", fmt.Errorf("model directory %q holds no weights and no base model is configured", modelDir)
	}
	if modelDir != "" {
		fmt.Fprintf(w, "warning: model directory %s holds no weights, using base model %s\n", modelDir, baseModel)
	}
	return baseModel, nil
}

func hasWeights(dir string) bool {
	if dir == "" {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".bin") || strings.HasSuffix(name, ".safetensors") {
			return true
		}
	}
	return false
}

// Command renders the full server argv for the given model. The "auto"
// port is resolved to a concrete random port on first call and kept, so
// GenerateURL stays consistent with the rendered command.
func (l *Launcher) Command(model string) []string {
	if l.args["port"] == PortAuto {
		l.args["port"] = fmt.Sprintf("%d", 30000+rand.Intn(10000))
	}

	argv := []string{"-m", serverModule, "--model", model}
	keys := make([]string, 0, len(l.args))
	for k := range l.args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		argv = append(argv, "--"+k, l.args[k])
	}
	if l.trustRemoteCode {
		argv = append(argv, "--trust-remote-code")
	}
	return argv
}

// GenerateURL returns the endpoint the running server answers on.
// The port must already be resolved by Command.
func (l *Launcher) GenerateURL() string {
	host := l.args["host"]
	if host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%s/generate", host, l.args["port"])
}

// Launch resolves the model, starts the server with secrets injected as
// environment variables, and blocks until the generate endpoint answers
// or the ready timeout expires. On timeout the process is killed.
func (l *Launcher) Launch(ctx context.Context, secrets map[string]string, w io.Writer) (Process, error) {
	model, err := ResolveModel(l.modelDir, l.baseModel, w)
	if err != nil {
		return nil, err
	}

	python, err := l.exec.LookPath("python")
	if err != nil {
		return nil, fmt.Errorf("python not found on PATH: %w", err)
	}

	argv := l.Command(model)
	env := secretEnv(secrets)

	fmt.Fprintf(w, "launching: %s %s\n", python, strings.Join(argv, " "))
	proc, err := l.exec.Start(python, argv, env, w, w)
	if err != nil {
		return nil, fmt.Errorf("starting inference server: %w", err)
	}

	readyCtx, cancel := context.WithTimeout(ctx, l.readyTimeout)
	defer cancel()

	if err := httputil.WaitReady(readyCtx, l.client, l.GenerateURL()); err != nil {
		proc.Kill()
		return nil, fmt.Errorf("inference server never became ready: %w", err)
	}

	fmt.Fprintf(w, "ready: %s\n", l.GenerateURL())
	return proc, nil
}

// secretEnv maps secret file names to environment variables: dashes
// become underscores and names are upper-cased, so the file
// huggingface-token becomes HUGGINGFACE_TOKEN.
func secretEnv(secrets map[string]string) []string {
	env := make([]string, 0, len(secrets))
	for name, value := range secrets {
		key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		env = append(env, key+"="+value)
	}
	sort.Strings(env)
	return env
}

// ExtractResult unwraps the server's generate response, which carries
// its completions as {"text": ["..."]}.
func ExtractResult(raw []byte) (string, error) {
	var payload struct {
		Text []string `json:"text"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("parsing generate response: %w", err)
	}
	if len(payload.Text) == 0 {
		return "", fmt.Errorf("generate response holds no text")
	}
	return payload.Text[0], nil
}
