/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := NewRootCommand(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")

	out, err := run(t, "--config", path, "config", "init")
	if err != nil {
		t.Fatalf("init: %s", err)
	}
	if !strings.Contains(out, path) {
		t.Fatalf("unexpected output: %s", out)
	}
	if _, err := run(t, "--config", path, "config", "init"); err == nil {
		t.Fatalf("second init must refuse to overwrite")
	}
	if _, err := run(t, "--config", path, "config", "init", "--overwrite"); err != nil {
		t.Fatalf("init --overwrite: %s", err)
	}

	out, err = run(t, "--config", path, "--log-level", "error", "config", "show")
	if err != nil {
		t.Fatalf("show: %s", err)
	}
	if !strings.Contains(out, "countPolicy: verbatim") || !strings.Contains(out, "logLevel: error") {
		t.Fatalf("unexpected config: %s", out)
	}
}

func TestInspect(t *testing.T) {
	config := filepath.Join(t.TempDir(), "config")
	out, err := run(t, "--config", config, "inspect", "421b0102030405060201061aff83050107000000abcd420c3f")
	if err != nil {
		t.Fatalf("inspect: %s", err)
	}
	if !strings.Contains(out, "ProximityLayerType") {
		t.Fatalf("unexpected output: %s", out)
	}

	if _, err := run(t, "--config", config, "inspect", "00"); err == nil {
		t.Fatalf("expected error for a short packet")
	}
}

func TestWrongLogLevel(t *testing.T) {
	config := filepath.Join(t.TempDir(), "config")
	if _, err := run(t, "--config", config, "--log-level", "verbose", "config", "show"); err == nil {
		t.Fatalf("expected error for unknown log level")
	}
}
